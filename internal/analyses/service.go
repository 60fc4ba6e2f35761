package analyses

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wattsmybill-backend/internal/bills"
	"wattsmybill-backend/internal/shared/metrics"
	"wattsmybill-backend/internal/shared/storage/object"
	"wattsmybill-backend/internal/shared/telemetry"
	"wattsmybill-backend/internal/strategy"
)

// Upload is the raw bill file received from a client.
type Upload struct {
	FileName string
	MimeType string
	Data     []byte
}

// Service orchestrates bill analyses: synchronous validation, then an
// asynchronous five-stage pipeline per job.
type Service struct {
	Repo     Repo
	Store    object.ObjectStore
	Selector *strategy.Selector
}

// Submit validates the upload, persists a pending job, and starts the
// pipeline in the background. The returned descriptor reflects the strategy
// that will actually run, after any silent downgrade.
func (s *Service) Submit(ctx context.Context, up Upload, prefs strategy.Preferences) (Analysis, strategy.Descriptor, error) {
	if len(up.Data) == 0 {
		metrics.IncUploadRejected()
		return Analysis{}, strategy.Descriptor{}, &bills.ValidationError{Message: "uploaded file is empty"}
	}

	text, err := bills.ExtractText(ctx, up.Data, up.MimeType, up.FileName)
	if err != nil {
		metrics.IncUploadRejected()
		return Analysis{}, strategy.Descriptor{}, bills.UnreadableDocument(err)
	}
	if err := bills.CheckEnergyDocument(text); err != nil {
		metrics.IncUploadRejected()
		return Analysis{}, strategy.Descriptor{}, err
	}

	chosen, descriptor := s.Selector.Select(ctx, prefs.UseCoordinated)
	if prefs.UseCoordinated && chosen.Tag() == strategy.TagStandalone {
		metrics.IncStrategyDowngraded()
		telemetry.Info("analysis.downgrade", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"from":       strategy.TagCoordinated,
			"to":         strategy.TagStandalone,
		})
	}

	analysis := Analysis{
		ID:               uuid.NewString(),
		Status:           StatusPending,
		ProcessingMethod: chosen.Tag(),
		State:            strings.ToUpper(prefs.State),
		Postcode:         prefs.Postcode,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	analysis.StorageKey = s.storeBill(ctx, analysis.ID, up, text)

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, strategy.Descriptor{}, fmt.Errorf("create analysis: %w", err)
	}

	doc := strategy.BillDocument{
		AnalysisID: analysis.ID,
		FileName:   up.FileName,
		MimeType:   up.MimeType,
		Text:       text,
	}
	go s.runPipeline(backgroundWithRequestID(ctx), analysis.ID, chosen, doc, prefs)

	return analysis, descriptor, nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// Results returns the normalized result once the job has completed.
func (s *Service) Results(ctx context.Context, analysisID string) (NormalizedResult, error) {
	analysis, err := s.Get(ctx, analysisID)
	if err != nil {
		return NormalizedResult{}, err
	}
	switch analysis.Status {
	case StatusCompleted:
		if analysis.Result == nil {
			return NormalizedResult{}, ErrNotReady
		}
		return *analysis.Result, nil
	case StatusFailed:
		return NormalizedResult{}, ErrJobFailed
	default:
		return NormalizedResult{}, ErrNotReady
	}
}

// storeBill archives the raw upload and its extracted text. Storage is
// best-effort: the pipeline works from the in-memory text either way.
func (s *Service) storeBill(ctx context.Context, analysisID string, up Upload, text string) string {
	if s.Store == nil {
		return ""
	}
	key, _, _, err := s.Store.Save(ctx, analysisID, up.FileName, bytes.NewReader(up.Data))
	if err != nil {
		telemetry.Warn("analysis.store", map[string]any{
			"analysis_id": analysisID,
			"error":       err.Error(),
		})
		return ""
	}
	if _, err := s.Store.SaveWithKey(ctx, key+".extracted.txt", "text/plain", strings.NewReader(text)); err != nil {
		telemetry.Warn("analysis.store", map[string]any{
			"analysis_id": analysisID,
			"error":       err.Error(),
		})
	}
	return key
}

func (s *Service) runPipeline(ctx context.Context, analysisID string, strat strategy.Strategy, doc strategy.BillDocument, prefs strategy.Preferences) {
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, analysisID, fmt.Errorf("panic: %v", r), nil)
		}
	}()

	startedAt := time.Now().UTC()
	if err := s.Repo.SetRunning(ctx, analysisID, startedAt); err != nil {
		s.failAnalysis(ctx, analysisID, fmt.Errorf("set running: %w", err), &startedAt)
		return
	}
	metrics.IncAnalysisStarted()
	s.logStatus(ctx, analysisID, StatusRunning, "pending->running", nil)

	bill, err := strat.AnalyzeBill(ctx, doc, prefs)
	if err != nil {
		metrics.IncStageFailed(StageBillAnalysis)
		s.failAnalysis(ctx, analysisID, fmt.Errorf("bill analysis: %w", err), &startedAt)
		return
	}
	stages := []StageResult{{Stage: StageBillAnalysis, OK: true, Bill: &bill}}
	if err := s.Repo.UpdateProgress(ctx, analysisID, progressPerStage, bill.Retailer); err != nil {
		s.failAnalysis(ctx, analysisID, fmt.Errorf("update progress: %w", err), &startedAt)
		return
	}

	// Market research, rebate hunt and usage optimization only depend on the
	// bill analysis, so they run concurrently. Their failures are absorbed:
	// the stage is recorded as failed and normalization substitutes defaults.
	var mu sync.Mutex
	completed := 0
	settle := func(res StageResult) {
		if !res.OK {
			metrics.IncStageFailed(res.Stage)
			telemetry.Warn("analysis.stage", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysisID,
				"stage":       res.Stage,
				"error":       res.Err,
			})
		}
		mu.Lock()
		stages = append(stages, res)
		completed++
		progress := progressPerStage + completed*progressPerStage
		mu.Unlock()
		if err := s.Repo.UpdateProgress(ctx, analysisID, progress, ""); err != nil {
			telemetry.Warn("analysis.stage", map[string]any{
				"analysis_id": analysisID,
				"stage":       res.Stage,
				"error":       err.Error(),
			})
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		market, err := strat.ResearchMarket(ctx, bill)
		if err != nil {
			settle(StageResult{Stage: StageMarketResearch, Err: err.Error()})
			return nil
		}
		settle(StageResult{Stage: StageMarketResearch, OK: true, Market: &market})
		return nil
	})
	g.Go(func() error {
		rebates, err := strat.FindRebates(ctx, bill, prefs)
		if err != nil {
			settle(StageResult{Stage: StageRebateHunt, Err: err.Error()})
			return nil
		}
		settle(StageResult{Stage: StageRebateHunt, OK: true, Rebates: &rebates})
		return nil
	})
	g.Go(func() error {
		usage, err := strat.OptimizeUsage(ctx, bill)
		if err != nil {
			settle(StageResult{Stage: StageUsageOptimization, Err: err.Error()})
			return nil
		}
		settle(StageResult{Stage: StageUsageOptimization, OK: true, Usage: &usage})
		return nil
	})
	_ = g.Wait()

	var market strategy.MarketResearch
	var rebates strategy.RebateSearch
	var usage strategy.UsageOptimization
	for _, st := range stages {
		switch {
		case st.Stage == StageMarketResearch && st.OK:
			market = *st.Market
		case st.Stage == StageRebateHunt && st.OK:
			rebates = *st.Rebates
		case st.Stage == StageUsageOptimization && st.OK:
			usage = *st.Usage
		}
	}

	synthesis, err := strat.SynthesizeSavings(ctx, bill, market, rebates, usage)
	if err != nil {
		metrics.IncStageFailed(StageSavingsSynthesis)
		telemetry.Warn("analysis.stage", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"stage":       StageSavingsSynthesis,
			"error":       err.Error(),
		})
		stages = append(stages, StageResult{Stage: StageSavingsSynthesis, Err: err.Error()})
	} else {
		stages = append(stages, StageResult{Stage: StageSavingsSynthesis, OK: true, Savings: &synthesis})
	}

	result := Normalize(analysisID, strat.Tag(), stages)

	completedAt := time.Now().UTC()
	if err := s.Repo.SetResult(ctx, analysisID, result, completedAt); err != nil {
		s.failAnalysis(ctx, analysisID, fmt.Errorf("set result: %w", err), &startedAt)
		return
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	s.logStatus(ctx, analysisID, StatusCompleted, "running->completed", map[string]any{
		"duration_ms":          durationMs(&startedAt, &completedAt),
		"processing_method":    strat.Tag(),
		"total_annual_savings": result.TotalAnnualSavings,
	})
}

func (s *Service) failAnalysis(ctx context.Context, analysisID string, err error, startedAt *time.Time) {
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.SetFailed(context.Background(), analysisID, sanitizeError(err), completedAt); updateErr != nil {
		telemetry.Error("analysis.status", map[string]any{
			"analysis_id": analysisID,
			"error":       updateErr.Error(),
			"cause":       sanitizeError(err),
		})
	}
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	s.logStatus(ctx, analysisID, StatusFailed, "running->failed", map[string]any{
		"error": sanitizeError(err),
	})
}

func (s *Service) logStatus(ctx context.Context, analysisID, status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"status":            status,
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("analysis.status", fields)
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
