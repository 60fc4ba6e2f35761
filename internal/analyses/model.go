package analyses

import "time"

// Job statuses. pending and running are transient; completed and failed are
// terminal and immutable.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Pipeline stage names, in execution order.
const (
	StageBillAnalysis      = "bill_analysis"
	StageMarketResearch    = "market_research"
	StageRebateHunt        = "rebate_hunt"
	StageUsageOptimization = "usage_optimization"
	StageSavingsSynthesis  = "savings_synthesis"
)

// Each of the five stages contributes an even share of the progress bar.
const progressPerStage = 20

// Analysis represents one bill analysis job.
type Analysis struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Progress         int               `json:"progress"`
	CompanyDetected  string            `json:"company_detected,omitempty"`
	ProcessingMethod string            `json:"processing_method"`
	State            string            `json:"state,omitempty"`
	Postcode         string            `json:"postcode,omitempty"`
	StorageKey       string            `json:"-"`
	Result           *NormalizedResult `json:"result,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final status.
func (a Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}
