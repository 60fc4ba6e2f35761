package standalone

import (
	"context"
	"fmt"

	"wattsmybill-backend/internal/bills"
	"wattsmybill-backend/internal/strategy"
)

// Billing period classifications, by length of the billed window.
const (
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodAnnual    = "annual"
)

type usageBands struct {
	low, medium, high float64
}

// Daily household usage bands in kWh, per state.
var stateUsageBands = map[string]usageBands{
	"NSW": {7.5, 15.0, 25.0},
	"VIC": {7.0, 14.0, 23.0},
	"QLD": {8.0, 16.0, 27.0},
	"SA":  {6.5, 13.0, 22.0},
	"WA":  {8.5, 17.0, 28.0},
	"TAS": {6.0, 12.0, 20.0},
	"NT":  {9.0, 18.0, 30.0},
	"ACT": {7.0, 14.0, 24.0},
}

// Cost-per-kWh thresholds for rating a bill's effective rate.
const (
	rateExcellent = 0.22
	rateGood      = 0.28
	rateAverage   = 0.32
	ratePoor      = 0.38
)

// AnalyzeBill parses the extracted bill text and derives the usage profile.
func (e *Engine) AnalyzeBill(ctx context.Context, doc strategy.BillDocument, prefs strategy.Preferences) (strategy.BillAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return strategy.BillAnalysis{}, err
	}

	parsed := bills.Parse(doc.Text)
	if parsed.UsageKWh <= 0 || parsed.TotalAmount <= 0 {
		return strategy.BillAnalysis{}, fmt.Errorf("bill text is missing usage or cost figures")
	}

	state := parsed.State
	if state == "" {
		state = prefs.State
	}
	if state == "" {
		state = e.defaultState
	}
	postcode := parsed.Postcode
	if postcode == "" {
		postcode = prefs.Postcode
	}

	days := parsed.BillingDays
	if days <= 0 {
		days = 90
	}
	daily := parsed.UsageKWh / float64(days)
	costPerKWh := parsed.TotalAmount / parsed.UsageKWh

	category := categorizeUsage(state, daily)
	rating := rateCost(costPerKWh)

	return strategy.BillAnalysis{
		Retailer:        parsed.Retailer,
		TotalAmount:     parsed.TotalAmount,
		UsageKWh:        parsed.UsageKWh,
		BillingDays:     days,
		BillingPeriod:   classifyPeriod(days),
		State:           state,
		Postcode:        postcode,
		HasSolar:        parsed.HasSolar(),
		SolarExportKWh:  parsed.SolarExportKWh,
		FeedInTariff:    parsed.FeedInTariff,
		TariffType:      parsed.TariffType,
		DailyAverageKWh: daily,
		CostPerKWh:      costPerKWh,
		UsageCategory:   category,
		EfficiencyScore: efficiencyScore(category, rating, parsed.HasSolar()),
		Confidence:      parsed.Confidence,
	}, nil
}

func classifyPeriod(days int) string {
	switch {
	case days <= 45:
		return PeriodMonthly
	case days <= 120:
		return PeriodQuarterly
	default:
		return PeriodAnnual
	}
}

// AnnualMultiplier converts a single bill's figures to annual figures.
func AnnualMultiplier(period string) float64 {
	switch period {
	case PeriodMonthly:
		return 12
	case PeriodQuarterly:
		return 4
	default:
		return 1
	}
}

func categorizeUsage(state string, dailyKWh float64) string {
	bands, ok := stateUsageBands[state]
	if !ok {
		bands = stateUsageBands["NSW"]
	}
	switch {
	case dailyKWh <= bands.low:
		return "low"
	case dailyKWh <= bands.medium:
		return "medium"
	case dailyKWh <= bands.high:
		return "high"
	default:
		return "very_high"
	}
}

func rateCost(costPerKWh float64) string {
	switch {
	case costPerKWh <= rateExcellent:
		return "excellent"
	case costPerKWh <= rateGood:
		return "good"
	case costPerKWh <= rateAverage:
		return "average"
	case costPerKWh <= ratePoor:
		return "poor"
	default:
		return "very_poor"
	}
}

// efficiencyScore blends usage level, effective rate and solar into 0..100.
func efficiencyScore(category, costRating string, hasSolar bool) float64 {
	score := 0.0

	switch category {
	case "low":
		score += 40
	case "medium":
		score += 30
	case "high":
		score += 20
	default:
		score += 10
	}

	switch costRating {
	case "excellent":
		score += 40
	case "good":
		score += 32
	case "average":
		score += 24
	case "poor":
		score += 16
	default:
		score += 8
	}

	if hasSolar {
		score += 12
	}

	if score > 100 {
		score = 100
	}
	return score
}
