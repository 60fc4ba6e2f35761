package analyses

import (
	"math"

	"wattsmybill-backend/internal/strategy"
)

// StageResult is the settled outcome of one pipeline stage. Exactly one
// payload pointer is set on success; a failed stage carries only its name
// and error text, and normalization substitutes that stage's defaults.
type StageResult struct {
	Stage string
	OK    bool
	Err   string

	Bill    *strategy.BillAnalysis
	Market  *strategy.MarketResearch
	Rebates *strategy.RebateSearch
	Usage   *strategy.UsageOptimization
	Savings *strategy.SavingsSynthesis
}

// BillSummary is the bill portion of the normalized result.
type BillSummary struct {
	Retailer        string  `json:"retailer"`
	BillingPeriod   string  `json:"billing_period"`
	UsageKWh        float64 `json:"usage_kwh"`
	Cost            float64 `json:"cost"`
	AnnualizedCost  float64 `json:"annualized_cost"`
	UsageCategory   string  `json:"usage_category,omitempty"`
	EfficiencyScore float64 `json:"efficiency_score,omitempty"`
}

// MarketComparison is the plan-switching portion of the normalized result.
type MarketComparison struct {
	BestPlan        *strategy.Plan `json:"best_plan,omitempty"`
	AnnualSavings   float64        `json:"annual_savings"`
	Confidence      string         `json:"confidence"`
	PlansConsidered int            `json:"plans_considered"`
	LiveData        bool           `json:"live_data"`
}

// RebateSummary lists applicable rebates and their total value.
type RebateSummary struct {
	Items []strategy.Rebate `json:"items"`
	Total float64           `json:"total"`
}

// UsageAdvice carries optimization suggestions and their savings estimate.
type UsageAdvice struct {
	Opportunities          []strategy.OptimizationTip `json:"opportunities"`
	QuickWins              []string                   `json:"quick_wins"`
	EstimatedAnnualSavings float64                    `json:"estimated_annual_savings"`
}

// SolarAnalysis is present only when the bill shows a solar system.
type SolarAnalysis struct {
	ExportKWh    float64 `json:"export_kwh"`
	FeedInTariff float64 `json:"feed_in_tariff"`
}

// NormalizedResult is the single external schema produced at job completion.
// Its shape is identical for both execution strategies.
type NormalizedResult struct {
	AnalysisID         string                    `json:"analysis_id"`
	ProcessingMethod   string                    `json:"processing_method"`
	BillSummary        BillSummary               `json:"bill_summary"`
	MarketComparison   MarketComparison          `json:"market_comparison"`
	Rebates            RebateSummary             `json:"rebates"`
	UsageAdvice        UsageAdvice               `json:"usage_advice"`
	Recommendations    []strategy.Recommendation `json:"recommendations"`
	SolarAnalysis      *SolarAnalysis            `json:"solar_analysis,omitempty"`
	TotalAnnualSavings float64                   `json:"total_annual_savings"`
	Confidence         float64                   `json:"confidence"`
	Summary            string                    `json:"summary,omitempty"`
}

// Normalize collapses the stage results into the external schema. It is a
// pure function: the same inputs always produce the same result. Failed or
// missing stages contribute their defined defaults, and the savings total
// falls back to the sum of component savings when synthesis is unavailable.
func Normalize(analysisID, processingMethod string, stages []StageResult) NormalizedResult {
	var bill *strategy.BillAnalysis
	var market *strategy.MarketResearch
	var rebates *strategy.RebateSearch
	var usage *strategy.UsageOptimization
	var savings *strategy.SavingsSynthesis

	for _, st := range stages {
		if !st.OK {
			continue
		}
		switch st.Stage {
		case StageBillAnalysis:
			bill = st.Bill
		case StageMarketResearch:
			market = st.Market
		case StageRebateHunt:
			rebates = st.Rebates
		case StageUsageOptimization:
			usage = st.Usage
		case StageSavingsSynthesis:
			savings = st.Savings
		}
	}

	result := NormalizedResult{
		AnalysisID:       analysisID,
		ProcessingMethod: processingMethod,
		MarketComparison: MarketComparison{Confidence: "low"},
		Rebates:          RebateSummary{Items: []strategy.Rebate{}},
		UsageAdvice: UsageAdvice{
			Opportunities: []strategy.OptimizationTip{},
			QuickWins:     []string{},
		},
		Recommendations: []strategy.Recommendation{},
	}

	if bill != nil {
		result.BillSummary = BillSummary{
			Retailer:        bill.Retailer,
			BillingPeriod:   bill.BillingPeriod,
			UsageKWh:        bill.UsageKWh,
			Cost:            bill.TotalAmount,
			AnnualizedCost:  round2(bill.TotalAmount * periodMultiplier(bill.BillingPeriod)),
			UsageCategory:   bill.UsageCategory,
			EfficiencyScore: bill.EfficiencyScore,
		}
		if bill.HasSolar {
			result.SolarAnalysis = &SolarAnalysis{
				ExportKWh:    bill.SolarExportKWh,
				FeedInTariff: bill.FeedInTariff,
			}
		}
	}

	if market != nil {
		result.MarketComparison = MarketComparison{
			BestPlan:        market.BestPlan,
			AnnualSavings:   market.AnnualSavings,
			Confidence:      market.Confidence,
			PlansConsidered: len(market.Plans),
			LiveData:        market.LiveData,
		}
		if result.MarketComparison.Confidence == "" {
			result.MarketComparison.Confidence = "low"
		}
	}

	if rebates != nil {
		result.Rebates = RebateSummary{
			Items: rebates.Rebates,
			Total: rebates.TotalValue,
		}
		if result.Rebates.Items == nil {
			result.Rebates.Items = []strategy.Rebate{}
		}
	}

	if usage != nil {
		result.UsageAdvice = UsageAdvice{
			Opportunities:          usage.Opportunities,
			QuickWins:              usage.QuickWins,
			EstimatedAnnualSavings: usage.AnnualSavings,
		}
		if result.UsageAdvice.Opportunities == nil {
			result.UsageAdvice.Opportunities = []strategy.OptimizationTip{}
		}
		if result.UsageAdvice.QuickWins == nil {
			result.UsageAdvice.QuickWins = []string{}
		}
	}

	if savings != nil {
		result.TotalAnnualSavings = savings.TotalAnnualSavings
		result.Confidence = savings.Confidence
		result.Summary = savings.Summary
		if savings.Recommendations != nil {
			result.Recommendations = savings.Recommendations
		}
	} else {
		result.TotalAnnualSavings = round2(result.MarketComparison.AnnualSavings +
			result.Rebates.Total + result.UsageAdvice.EstimatedAnnualSavings)
		result.Confidence = 0.5
	}

	return result
}

func periodMultiplier(period string) float64 {
	switch period {
	case "monthly":
		return 12
	case "quarterly":
		return 4
	default:
		return 1
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
