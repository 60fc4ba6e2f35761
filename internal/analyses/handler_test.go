package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"wattsmybill-backend/internal/strategy"
	"wattsmybill-backend/internal/strategy/standalone"
)

func newTestRouter(t *testing.T, svc *Service, selector *strategy.Selector) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := &Handler{
		Svc:            svc,
		Selector:       selector,
		MaxUploadBytes: defaultMaxUploadBytes,
		poll:           newPollLimiter(time.Nanosecond, nil),
	}
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func newStandaloneService(t *testing.T) (*Service, *MemoryRepo, *strategy.Selector) {
	t.Helper()
	engine, err := standalone.New("NSW")
	if err != nil {
		t.Fatalf("standalone.New: %v", err)
	}
	repo := NewMemoryRepo()
	selector := &strategy.Selector{Standalone: engine}
	return &Service{Repo: repo, Selector: selector}, repo, selector
}

func multipartBill(t *testing.T, fileName, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func doRequest(router *gin.Engine, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadBillEndToEnd(t *testing.T) {
	svc, repo, selector := newStandaloneService(t)
	router := newTestRouter(t, svc, selector)

	body, contentType := multipartBill(t, "bill.txt", testBillText, map[string]string{"state": "QLD"})
	rec := doRequest(router, http.MethodPost, "/api/v1/upload-bill", body, contentType)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	var uploaded struct {
		AnalysisID           string `json:"analysis_id"`
		Status               string `json:"status"`
		ProcessingMethod     string `json:"processing_method"`
		CoordinatedAvailable bool   `json:"coordinated_available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploaded.AnalysisID == "" || uploaded.Status != StatusPending {
		t.Fatalf("upload response = %+v", uploaded)
	}
	if uploaded.ProcessingMethod != strategy.TagStandalone || uploaded.CoordinatedAvailable {
		t.Errorf("strategy fields = %+v", uploaded)
	}

	waitForTerminal(t, repo, uploaded.AnalysisID)

	rec = doRequest(router, http.MethodGet, "/api/v1/analysis/"+uploaded.AnalysisID+"/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var status statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != StatusCompleted || status.Progress != 100 {
		t.Errorf("status = %+v", status)
	}
	if status.CompanyDetected != "Origin Energy" {
		t.Errorf("company detected = %q", status.CompanyDetected)
	}

	rec = doRequest(router, http.MethodGet, "/api/v1/analysis/"+uploaded.AnalysisID+"/results", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("results code = %d, body %s", rec.Code, rec.Body.String())
	}
	var result NormalizedResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.BillSummary.Cost != 712.50 || result.BillSummary.AnnualizedCost != 2850.00 {
		t.Errorf("bill summary = %+v", result.BillSummary)
	}
	want := round2(result.MarketComparison.AnnualSavings + result.Rebates.Total)
	if result.TotalAnnualSavings != want {
		t.Errorf("total savings = %v, want market+rebates %v", result.TotalAnnualSavings, want)
	}
	if result.SolarAnalysis != nil {
		t.Error("solar analysis present for non-solar bill")
	}
}

func TestUploadBillRejectsNonEnergyDocument(t *testing.T) {
	svc, _, selector := newStandaloneService(t)
	router := newTestRouter(t, svc, selector)

	body, contentType := multipartBill(t, "notes.txt", "weekly shopping list", nil)
	rec := doRequest(router, http.MethodPost, "/api/v1/upload-bill", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Tips               []string `json:"tips"`
				SupportedCompanies []string `json:"supported_companies"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errResp.Error.Code != ErrorCodeValidation {
		t.Errorf("code = %q", errResp.Error.Code)
	}
	if len(errResp.Error.Details.Tips) == 0 {
		t.Error("rejection carries no tips")
	}
	if len(errResp.Error.Details.SupportedCompanies) == 0 {
		t.Error("rejection carries no supported companies")
	}
}

func TestUploadBillRequiresFile(t *testing.T) {
	svc, _, selector := newStandaloneService(t)
	router := newTestRouter(t, svc, selector)

	rec := doRequest(router, http.MethodPost, "/api/v1/upload-bill", nil, "multipart/form-data; boundary=x")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStatusUnknownAnalysis(t *testing.T) {
	svc, _, selector := newStandaloneService(t)
	router := newTestRouter(t, svc, selector)

	rec := doRequest(router, http.MethodGet, "/api/v1/analysis/unknown/status", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestResultsBeforeCompletion(t *testing.T) {
	svc, repo, selector := newStandaloneService(t)
	router := newTestRouter(t, svc, selector)

	pending := Analysis{ID: "p1", Status: StatusRunning, Progress: 40, ProcessingMethod: strategy.TagStandalone, CreatedAt: time.Now().UTC()}
	if err := repo.Create(context.Background(), pending); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/api/v1/analysis/p1/results", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(ErrorCodeNotReady)) {
		t.Errorf("body = %s, want not-ready code", rec.Body.String())
	}
}

func TestResultsFailedAnalysis(t *testing.T) {
	svc, repo, selector := newStandaloneService(t)
	router := newTestRouter(t, svc, selector)

	failed := Analysis{ID: "f1", Status: StatusPending, CreatedAt: time.Now().UTC()}
	if err := repo.Create(context.Background(), failed); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.SetFailed(context.Background(), "f1", "bill analysis: boom", time.Now().UTC()); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/api/v1/analysis/f1/results", nil, "")
	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rec.Code)
	}
}

func TestStatusPollingThrottled(t *testing.T) {
	svc, repo, _ := newStandaloneService(t)
	gin.SetMode(gin.TestMode)
	handler := NewHandler(svc, svc.Selector, 0)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))

	pending := Analysis{ID: "p1", Status: StatusPending, ProcessingMethod: strategy.TagStandalone, CreatedAt: time.Now().UTC()}
	if err := repo.Create(context.Background(), pending); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rec := doRequest(router, http.MethodGet, "/api/v1/analysis/p1/status", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("first poll = %d", rec.Code)
	}
	rec := doRequest(router, http.MethodGet, "/api/v1/analysis/p1/status", nil, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second poll = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("throttled response has no Retry-After header")
	}
}

func TestSupportedCompanies(t *testing.T) {
	svc, _, selector := newStandaloneService(t)
	router := newTestRouter(t, svc, selector)

	rec := doRequest(router, http.MethodGet, "/api/v1/supported-companies", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		SupportedCompanies []string `json:"supported_companies"`
		Count              int      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != len(body.SupportedCompanies) || body.Count == 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestAgentsStatusWithoutRuntime(t *testing.T) {
	svc, _, selector := newStandaloneService(t)
	router := newTestRouter(t, svc, selector)

	rec := doRequest(router, http.MethodGet, "/api/v1/agents-status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Coordinated strategy.Descriptor `json:"coordinated"`
		Standalone  strategy.Descriptor `json:"standalone"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Coordinated.Available {
		t.Error("coordinated reported available without a runtime")
	}
	if !body.Standalone.Available {
		t.Error("standalone must always be available")
	}
}
