package standalone

import (
	"context"

	"wattsmybill-backend/internal/strategy"
)

// OptimizeUsage produces rule-based advice from the usage profile. Tips carry
// indicative per-change estimates, but the stage's aggregate savings stay at
// zero: local advice is not firm enough to count toward the savings total the
// way the agent runtime's quantified output is.
func (e *Engine) OptimizeUsage(ctx context.Context, bill strategy.BillAnalysis) (strategy.UsageOptimization, error) {
	if err := ctx.Err(); err != nil {
		return strategy.UsageOptimization{}, err
	}

	var tips []strategy.OptimizationTip
	var quickWins []string

	if bill.UsageCategory == "high" || bill.UsageCategory == "very_high" {
		tips = append(tips, strategy.OptimizationTip{
			Title:         "Upgrade to energy-efficient appliances",
			Description:   "Replace old appliances with ENERGY STAR rated models",
			AnnualSavings: 300,
			Difficulty:    "medium",
		})
		quickWins = append(quickWins,
			"Switch to LED light bulbs (save $50-100/year)",
			"Use cold water for washing (save $30-60/year)",
			"Air dry clothes instead of tumble drying",
		)
	}

	if bill.DailyAverageKWh > 10 {
		tips = append(tips, strategy.OptimizationTip{
			Title:         "Shift usage to off-peak hours",
			Description:   "Run dishwasher and washing machine at night",
			AnnualSavings: 200,
			Difficulty:    "easy",
		})
		quickWins = append(quickWins, "Run major appliances during off-peak hours (9pm-7am)")
	}

	if bill.HasSolar {
		tips = append(tips, strategy.OptimizationTip{
			Title:         "Install battery storage",
			Description:   "Capture excess solar export with a home battery system",
			AnnualSavings: 800,
			Difficulty:    "hard",
		})
		quickWins = append(quickWins, "Shift daytime usage to maximize solar self-consumption")
	}

	tips = append(tips, strategy.OptimizationTip{
		Title:         "Optimize heating and cooling settings",
		Description:   "Set thermostat 1-2 degrees higher in summer, lower in winter",
		AnnualSavings: 250,
		Difficulty:    "easy",
	})

	return strategy.UsageOptimization{
		Opportunities: tips,
		QuickWins:     quickWins,
		AnnualSavings: 0,
	}, nil
}
