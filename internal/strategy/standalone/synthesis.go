package standalone

import (
	"context"
	"fmt"

	"wattsmybill-backend/internal/strategy"
)

// Recommendation thresholds in annual dollars.
const (
	planSwitchWorthwhile  = 100
	usageAdviceWorthwhile = 50
)

// SynthesizeSavings merges the stage outputs into prioritized
// recommendations and one aggregate savings figure.
func (e *Engine) SynthesizeSavings(ctx context.Context, bill strategy.BillAnalysis, market strategy.MarketResearch, rebates strategy.RebateSearch, usage strategy.UsageOptimization) (strategy.SavingsSynthesis, error) {
	if err := ctx.Err(); err != nil {
		return strategy.SavingsSynthesis{}, err
	}

	total := round2(market.AnnualSavings + rebates.TotalValue + usage.AnnualSavings)

	var recs []strategy.Recommendation
	if market.AnnualSavings > planSwitchWorthwhile && market.BestPlan != nil {
		recs = append(recs, strategy.Recommendation{
			Priority:      1,
			Type:          "plan_switch",
			Title:         fmt.Sprintf("Switch to %s", market.BestPlan.Retailer),
			Description:   fmt.Sprintf("Switching to %s saves an estimated $%.0f per year", market.BestPlan.Name, market.AnnualSavings),
			AnnualSavings: market.AnnualSavings,
		})
	}
	if rebates.TotalValue > 0 {
		recs = append(recs, strategy.Recommendation{
			Priority:      2,
			Type:          "rebates",
			Title:         fmt.Sprintf("Apply for $%.0f in government rebates", rebates.TotalValue),
			Description:   fmt.Sprintf("Found %d applicable rebates for your household", len(rebates.Rebates)),
			AnnualSavings: rebates.TotalValue,
		})
	}
	if usage.AnnualSavings > usageAdviceWorthwhile {
		recs = append(recs, strategy.Recommendation{
			Priority:      3,
			Type:          "usage_optimization",
			Title:         "Reduce usage with targeted changes",
			Description:   fmt.Sprintf("Usage changes could save around $%.0f per year", usage.AnnualSavings),
			AnnualSavings: usage.AnnualSavings,
		})
	}

	summary := "Your current plan is competitive"
	if total > 0 {
		summary = fmt.Sprintf("Save up to $%.0f annually by switching plans and claiming rebates", total)
	}

	return strategy.SavingsSynthesis{
		Recommendations:    recs,
		TotalAnnualSavings: total,
		Confidence:         0.7,
		Summary:            summary,
	}, nil
}
