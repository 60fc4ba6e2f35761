// Package strategy defines the execution strategies behind a bill analysis:
// a coordinated remote agent runtime and a standalone local fallback, both
// producing the same stage payloads.
package strategy

import "context"

// Strategy tags recorded on each analysis as its processing method.
const (
	TagCoordinated = "coordinated"
	TagStandalone  = "standalone"
)

// Preferences carries the caller-supplied hints that accompany an upload.
type Preferences struct {
	State          string
	Postcode       string
	UseCoordinated bool
}

// BillDocument is the extracted bill content handed to the first stage.
type BillDocument struct {
	AnalysisID string
	FileName   string
	MimeType   string
	Text       string
}

// BillAnalysis is the outcome of the bill-analysis stage.
type BillAnalysis struct {
	Retailer        string  `json:"retailer"`
	TotalAmount     float64 `json:"total_amount"`
	UsageKWh        float64 `json:"usage_kwh"`
	BillingDays     int     `json:"billing_days"`
	BillingPeriod   string  `json:"billing_period"`
	State           string  `json:"state"`
	Postcode        string  `json:"postcode,omitempty"`
	HasSolar        bool    `json:"has_solar"`
	SolarExportKWh  float64 `json:"solar_export_kwh,omitempty"`
	FeedInTariff    float64 `json:"feed_in_tariff,omitempty"`
	TariffType      string  `json:"tariff_type"`
	DailyAverageKWh float64 `json:"daily_average_kwh"`
	CostPerKWh      float64 `json:"cost_per_kwh"`
	UsageCategory   string  `json:"usage_category"`
	EfficiencyScore float64 `json:"efficiency_score"`
	Confidence      float64 `json:"confidence"`
}

// Plan is one retailer offer considered during market research.
type Plan struct {
	ID                  string  `json:"id"`
	Retailer            string  `json:"retailer"`
	Name                string  `json:"name"`
	UsageRate           float64 `json:"usage_rate"`
	DailySupplyCharge   float64 `json:"daily_supply_charge"`
	FeedInTariff        float64 `json:"feed_in_tariff,omitempty"`
	EstimatedAnnualCost float64 `json:"estimated_annual_cost"`
	AnnualSavings       float64 `json:"annual_savings"`
}

// MarketResearch is the outcome of the market-research stage.
type MarketResearch struct {
	BestPlan          *Plan   `json:"best_plan,omitempty"`
	Plans             []Plan  `json:"plans"`
	CurrentAnnualCost float64 `json:"current_annual_cost"`
	AnnualSavings     float64 `json:"annual_savings"`
	Confidence        string  `json:"confidence"`
	LiveData          bool    `json:"live_data"`
}

// Rebate is one government or retailer rebate the household may claim.
type Rebate struct {
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	Amount      float64 `json:"amount"`
	Eligibility string  `json:"eligibility"`
	HighValue   bool    `json:"high_value"`
}

// RebateSearch is the outcome of the rebate-hunt stage.
type RebateSearch struct {
	Rebates        []Rebate `json:"rebates"`
	TotalValue     float64  `json:"total_value"`
	HighValueCount int      `json:"high_value_count"`
}

// OptimizationTip is one behavioral or equipment change suggestion.
type OptimizationTip struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	AnnualSavings float64 `json:"annual_savings"`
	Difficulty    string  `json:"difficulty"`
}

// UsageOptimization is the outcome of the usage-optimization stage.
type UsageOptimization struct {
	Opportunities []OptimizationTip `json:"opportunities"`
	QuickWins     []string          `json:"quick_wins"`
	AnnualSavings float64           `json:"annual_savings"`
}

// Recommendation is one prioritized action in the synthesis output.
type Recommendation struct {
	Priority      int     `json:"priority"`
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	AnnualSavings float64 `json:"annual_savings"`
}

// SavingsSynthesis is the outcome of the savings-synthesis stage.
type SavingsSynthesis struct {
	Recommendations    []Recommendation `json:"recommendations"`
	TotalAnnualSavings float64          `json:"total_annual_savings"`
	Confidence         float64          `json:"confidence"`
	Summary            string           `json:"summary"`
}

// Strategy executes the five analysis stages. Implementations must be safe
// for concurrent use; the middle three stages run in parallel.
type Strategy interface {
	Tag() string
	AnalyzeBill(ctx context.Context, doc BillDocument, prefs Preferences) (BillAnalysis, error)
	ResearchMarket(ctx context.Context, bill BillAnalysis) (MarketResearch, error)
	FindRebates(ctx context.Context, bill BillAnalysis, prefs Preferences) (RebateSearch, error)
	OptimizeUsage(ctx context.Context, bill BillAnalysis) (UsageOptimization, error)
	SynthesizeSavings(ctx context.Context, bill BillAnalysis, market MarketResearch, rebates RebateSearch, usage UsageOptimization) (SavingsSynthesis, error)
}

// Descriptor is a capability snapshot of a strategy.
type Descriptor struct {
	Tag            string `json:"tag"`
	Available      bool   `json:"available"`
	LiveMarketData bool   `json:"live_market_data"`
	RealAgents     bool   `json:"real_agents"`
}

// Selector picks the strategy for one submission. The coordinated runtime is
// probed per call so a recovered or degraded runtime takes effect on the next
// upload, never mid-flight.
type Selector struct {
	Coordinated Strategy
	Probe       func(ctx context.Context) Descriptor
	Standalone  Strategy
}

// Select returns the strategy for a submission and the descriptor that
// justified the choice. Requests for coordinated downgrade silently to
// standalone when the runtime is absent or unavailable.
func (s *Selector) Select(ctx context.Context, wantCoordinated bool) (Strategy, Descriptor) {
	if wantCoordinated && s.Coordinated != nil && s.Probe != nil {
		if d := s.Probe(ctx); d.Available {
			return s.Coordinated, d
		}
	}
	return s.Standalone, StandaloneDescriptor()
}

// CoordinatedStatus reports the current coordinated capability, for the
// agents-status endpoint.
func (s *Selector) CoordinatedStatus(ctx context.Context) Descriptor {
	if s.Coordinated == nil || s.Probe == nil {
		return Descriptor{Tag: TagCoordinated}
	}
	return s.Probe(ctx)
}

// StandaloneDescriptor describes the always-available local strategy.
func StandaloneDescriptor() Descriptor {
	return Descriptor{Tag: TagStandalone, Available: true}
}
