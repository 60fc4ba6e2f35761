package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"wattsmybill-backend/internal/bills"
	"wattsmybill-backend/internal/strategy"
)

const testBillText = `Origin Energy
Amount Due: $712.50
Total Usage: 2,060 kWh
Billing period (91 days)
Brisbane QLD 4000
`

type stubStrategy struct {
	tag string

	bill    strategy.BillAnalysis
	market  strategy.MarketResearch
	rebates strategy.RebateSearch
	usage   strategy.UsageOptimization
	synth   strategy.SavingsSynthesis

	billErr   error
	marketErr error
	rebateErr error
	usageErr  error
	synthErr  error
}

func (s *stubStrategy) Tag() string { return s.tag }

func (s *stubStrategy) AnalyzeBill(context.Context, strategy.BillDocument, strategy.Preferences) (strategy.BillAnalysis, error) {
	return s.bill, s.billErr
}

func (s *stubStrategy) ResearchMarket(context.Context, strategy.BillAnalysis) (strategy.MarketResearch, error) {
	return s.market, s.marketErr
}

func (s *stubStrategy) FindRebates(context.Context, strategy.BillAnalysis, strategy.Preferences) (strategy.RebateSearch, error) {
	return s.rebates, s.rebateErr
}

func (s *stubStrategy) OptimizeUsage(context.Context, strategy.BillAnalysis) (strategy.UsageOptimization, error) {
	return s.usage, s.usageErr
}

func (s *stubStrategy) SynthesizeSavings(context.Context, strategy.BillAnalysis, strategy.MarketResearch, strategy.RebateSearch, strategy.UsageOptimization) (strategy.SavingsSynthesis, error) {
	return s.synth, s.synthErr
}

func happyStub() *stubStrategy {
	return &stubStrategy{
		tag: strategy.TagStandalone,
		bill: strategy.BillAnalysis{
			Retailer:      "Origin Energy",
			TotalAmount:   712.50,
			UsageKWh:      2060,
			BillingDays:   91,
			BillingPeriod: "quarterly",
			State:         "QLD",
		},
		market:  strategy.MarketResearch{AnnualSavings: 516.58, Confidence: "medium"},
		rebates: strategy.RebateSearch{TotalValue: 972},
		synth:   strategy.SavingsSynthesis{TotalAnnualSavings: 1488.58, Confidence: 0.7},
	}
}

func newTestService(stub *stubStrategy) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := &Service{
		Repo:     repo,
		Selector: &strategy.Selector{Standalone: stub},
	}
	return svc, repo
}

func submitTestBill(t *testing.T, svc *Service, prefs strategy.Preferences) Analysis {
	t.Helper()
	up := Upload{FileName: "bill.txt", MimeType: "text/plain", Data: []byte(testBillText)}
	analysis, _, err := svc.Submit(context.Background(), up, prefs)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return analysis
}

func waitForTerminal(t *testing.T, repo Repo, analysisID string) Analysis {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		analysis, err := repo.GetByID(context.Background(), analysisID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if analysis.Terminal() {
			return analysis
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("analysis did not reach a terminal status")
	return Analysis{}
}

func TestSubmitRejectsNonEnergyDocument(t *testing.T) {
	svc, _ := newTestService(happyStub())
	up := Upload{FileName: "notes.txt", MimeType: "text/plain", Data: []byte("meeting agenda for tuesday")}

	_, _, err := svc.Submit(context.Background(), up, strategy.Preferences{})
	var verr *bills.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *bills.ValidationError, got %v", err)
	}
	if len(verr.Tips) == 0 {
		t.Error("validation error has no tips")
	}
}

func TestSubmitRejectsEmptyUpload(t *testing.T) {
	svc, _ := newTestService(happyStub())
	_, _, err := svc.Submit(context.Background(), Upload{FileName: "bill.txt", MimeType: "text/plain"}, strategy.Preferences{})
	var verr *bills.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *bills.ValidationError, got %v", err)
	}
}

func TestSubmitCompletesPipeline(t *testing.T) {
	svc, repo := newTestService(happyStub())
	analysis := submitTestBill(t, svc, strategy.Preferences{State: "QLD"})

	if analysis.Status != StatusPending {
		t.Errorf("initial status = %q, want pending", analysis.Status)
	}
	if analysis.ProcessingMethod != strategy.TagStandalone {
		t.Errorf("processing method = %q", analysis.ProcessingMethod)
	}

	final := waitForTerminal(t, repo, analysis.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", final.Status, final.ErrorMessage)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}
	if final.CompanyDetected != "Origin Energy" {
		t.Errorf("company detected = %q", final.CompanyDetected)
	}
	if final.Result == nil {
		t.Fatal("completed analysis has no result")
	}
	if final.Result.TotalAnnualSavings != 1488.58 {
		t.Errorf("total savings = %v", final.Result.TotalAnnualSavings)
	}
	if final.Result.BillSummary.AnnualizedCost != 2850.00 {
		t.Errorf("annualized cost = %v, want 2850.00", final.Result.BillSummary.AnnualizedCost)
	}
}

func TestBillAnalysisFailureFailsJob(t *testing.T) {
	stub := happyStub()
	stub.billErr = errors.New("unreadable figures")
	svc, repo := newTestService(stub)
	analysis := submitTestBill(t, svc, strategy.Preferences{})

	final := waitForTerminal(t, repo, analysis.ID)
	if final.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", final.Status)
	}
	if final.Result != nil {
		t.Error("failed analysis must not carry a result")
	}
	if final.ErrorMessage == "" {
		t.Error("failed analysis has no error message")
	}
}

func TestMiddleStageFailuresAreAbsorbed(t *testing.T) {
	stub := happyStub()
	stub.marketErr = errors.New("runtime unreachable")
	stub.rebateErr = errors.New("runtime unreachable")
	svc, repo := newTestService(stub)
	analysis := submitTestBill(t, svc, strategy.Preferences{})

	final := waitForTerminal(t, repo, analysis.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed despite stage failures", final.Status)
	}
	if final.Result.MarketComparison.AnnualSavings != 0 {
		t.Errorf("market savings = %v, want default 0", final.Result.MarketComparison.AnnualSavings)
	}
	if len(final.Result.Rebates.Items) != 0 {
		t.Errorf("rebates = %+v, want empty default", final.Result.Rebates)
	}
}

func TestSynthesisFailureFallsBack(t *testing.T) {
	stub := happyStub()
	stub.synthErr = errors.New("agent crashed")
	svc, repo := newTestService(stub)
	analysis := submitTestBill(t, svc, strategy.Preferences{})

	final := waitForTerminal(t, repo, analysis.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	want := round2(stub.market.AnnualSavings + stub.rebates.TotalValue)
	if final.Result.TotalAnnualSavings != want {
		t.Errorf("total savings = %v, want component sum %v", final.Result.TotalAnnualSavings, want)
	}
}

func TestSilentDowngradeRecordsStandalone(t *testing.T) {
	stub := happyStub()
	repo := NewMemoryRepo()
	svc := &Service{
		Repo: repo,
		Selector: &strategy.Selector{
			Coordinated: &stubStrategy{tag: strategy.TagCoordinated},
			Probe: func(context.Context) strategy.Descriptor {
				return strategy.Descriptor{Tag: strategy.TagCoordinated}
			},
			Standalone: stub,
		},
	}

	up := Upload{FileName: "bill.txt", MimeType: "text/plain", Data: []byte(testBillText)}
	analysis, descriptor, err := svc.Submit(context.Background(), up, strategy.Preferences{UseCoordinated: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if analysis.ProcessingMethod != strategy.TagStandalone {
		t.Errorf("processing method = %q, want standalone downgrade", analysis.ProcessingMethod)
	}
	if descriptor.Tag != strategy.TagStandalone || !descriptor.Available {
		t.Errorf("descriptor = %+v", descriptor)
	}

	final := waitForTerminal(t, repo, analysis.ID)
	if final.Result.ProcessingMethod != strategy.TagStandalone {
		t.Errorf("result processing method = %q", final.Result.ProcessingMethod)
	}
}

func TestResultsErrorTaxonomy(t *testing.T) {
	svc, repo := newTestService(happyStub())
	ctx := context.Background()

	if _, err := svc.Results(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}

	pending := Analysis{ID: "p1", Status: StatusPending, ProcessingMethod: strategy.TagStandalone, CreatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, pending); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Results(ctx, "p1"); !errors.Is(err, ErrNotReady) {
		t.Errorf("pending job error = %v, want ErrNotReady", err)
	}

	failed := Analysis{ID: "f1", Status: StatusPending, CreatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, failed); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.SetFailed(ctx, "f1", "bill analysis: boom", time.Now().UTC()); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	if _, err := svc.Results(ctx, "f1"); !errors.Is(err, ErrJobFailed) {
		t.Errorf("failed job error = %v, want ErrJobFailed", err)
	}
}
