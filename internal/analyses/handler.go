package analyses

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"wattsmybill-backend/internal/bills"
	"wattsmybill-backend/internal/shared/server/respond"
	"wattsmybill-backend/internal/strategy"
)

const defaultMaxUploadBytes = 10 << 20

// Handler exposes the analysis HTTP surface.
type Handler struct {
	Svc            *Service
	Selector       *strategy.Selector
	MaxUploadBytes int64

	poll *pollLimiter
}

// NewHandler wires the handler with its poll limiter.
func NewHandler(svc *Service, selector *strategy.Selector, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		Svc:            svc,
		Selector:       selector,
		MaxUploadBytes: maxUploadBytes,
		poll:           newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes mounts the analysis endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload-bill", h.UploadBill)
	rg.GET("/analysis/:id/status", h.Status)
	rg.GET("/analysis/:id/results", h.Results)
	rg.GET("/supported-companies", h.SupportedCompanies)
	rg.GET("/agents-status", h.AgentsStatus)
}

type uploadResponse struct {
	AnalysisID           string `json:"analysis_id"`
	Status               string `json:"status"`
	ProcessingMethod     string `json:"processing_method"`
	CoordinatedAvailable bool   `json:"coordinated_available"`
}

// UploadBill accepts a multipart bill upload and starts an analysis.
func (h *Handler) UploadBill(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file is required", nil)
		return
	}
	if fileHeader.Size > h.MaxUploadBytes {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file exceeds the upload size limit", map[string]any{
			"max_bytes": h.MaxUploadBytes,
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "could not open uploaded file", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.MaxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "could not read uploaded file", nil)
		return
	}
	if int64(len(data)) > h.MaxUploadBytes {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file exceeds the upload size limit", map[string]any{
			"max_bytes": h.MaxUploadBytes,
		})
		return
	}

	prefs := strategy.Preferences{
		State:          strings.ToUpper(strings.TrimSpace(c.PostForm("state"))),
		Postcode:       strings.TrimSpace(c.PostForm("postcode")),
		UseCoordinated: parseBoolDefault(c.PostForm("use_coordinated"), true),
	}

	up := Upload{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, descriptor, err := h.Svc.Submit(ctx, up, prefs)
	if err != nil {
		var verr *bills.ValidationError
		if errors.As(err, &verr) {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, verr.Message, map[string]any{
				"tips":                verr.Tips,
				"supported_companies": bills.SupportedCompanies(),
				"energy_terms_found":  verr.EnergyTermsFound,
				"retailers_matched":   verr.RetailersMatched,
			})
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to start analysis", nil)
		return
	}

	c.Set("analysisId", analysis.ID)
	c.Set("processingMethod", analysis.ProcessingMethod)
	respond.Accepted(c, uploadResponse{
		AnalysisID:           analysis.ID,
		Status:               analysis.Status,
		ProcessingMethod:     analysis.ProcessingMethod,
		CoordinatedAvailable: descriptor.Tag == strategy.TagCoordinated && descriptor.Available,
	})
}

type statusResponse struct {
	AnalysisID       string `json:"analysis_id"`
	Status           string `json:"status"`
	Progress         int    `json:"progress"`
	CompanyDetected  string `json:"company_detected,omitempty"`
	ProcessingMethod string `json:"processing_method"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// Status reports job progress for polling clients.
func (h *Handler) Status(c *gin.Context) {
	analysisID := c.Param("id")
	if !h.poll.Allow(c.ClientIP(), analysisID) {
		c.Header("Retry-After", strconv.Itoa(h.poll.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "polling too fast", map[string]any{
			"retry_after_seconds": h.poll.RetryAfterSeconds(),
		})
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "analysis not found", nil)
		return
	}

	c.Set("analysisId", analysis.ID)
	c.Set("processingMethod", analysis.ProcessingMethod)
	respond.OK(c, statusResponse{
		AnalysisID:       analysis.ID,
		Status:           analysis.Status,
		Progress:         analysis.Progress,
		CompanyDetected:  analysis.CompanyDetected,
		ProcessingMethod: analysis.ProcessingMethod,
		ErrorMessage:     analysis.ErrorMessage,
	})
}

// Results returns the normalized result of a completed analysis.
func (h *Handler) Results(c *gin.Context) {
	result, err := h.Svc.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "analysis not found", nil)
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusAccepted, ErrorCodeNotReady, "analysis is still in progress", nil)
		case errors.Is(err, ErrJobFailed):
			respond.Error(c, http.StatusGone, ErrorCodeFailed, "analysis failed", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to load results", nil)
		}
		return
	}

	c.Set("analysisId", result.AnalysisID)
	c.Set("processingMethod", result.ProcessingMethod)
	respond.OK(c, result)
}

// SupportedCompanies lists the retailers the parser recognizes.
func (h *Handler) SupportedCompanies(c *gin.Context) {
	companies := bills.SupportedCompanies()
	respond.OK(c, gin.H{
		"supported_companies": companies,
		"count":               len(companies),
	})
}

// AgentsStatus reports current strategy capabilities.
func (h *Handler) AgentsStatus(c *gin.Context) {
	respond.OK(c, gin.H{
		"coordinated": h.Selector.CoordinatedStatus(c.Request.Context()),
		"standalone":  strategy.StandaloneDescriptor(),
	})
}

func parseBoolDefault(raw string, def bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}
