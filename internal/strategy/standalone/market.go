package standalone

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"wattsmybill-backend/internal/strategy"
)

// Plans are only recommended when they beat the current bill by this much
// per year.
const minPlanSavings = 50

// ResearchMarket compares the annualized bill against the embedded retailer
// rate table.
func (e *Engine) ResearchMarket(ctx context.Context, bill strategy.BillAnalysis) (strategy.MarketResearch, error) {
	if err := ctx.Err(); err != nil {
		return strategy.MarketResearch{}, err
	}
	if bill.UsageKWh <= 0 || bill.TotalAmount <= 0 {
		return strategy.MarketResearch{}, fmt.Errorf("bill analysis has no usable usage or cost")
	}

	mult := AnnualMultiplier(bill.BillingPeriod)
	annualUsage := bill.UsageKWh * mult
	annualCost := round2(bill.TotalAmount * mult)

	plans := make([]strategy.Plan, 0, len(e.plans))
	for _, r := range e.plans {
		estimated := round2(annualUsage*r.UsageRate + 365*r.DailySupply)
		savings := round2(annualCost - estimated)
		if savings <= minPlanSavings {
			continue
		}
		plans = append(plans, strategy.Plan{
			ID:                  planID(r.Key, bill.State),
			Retailer:            r.Name,
			Name:                r.Name + " Saver",
			UsageRate:           r.UsageRate,
			DailySupplyCharge:   r.DailySupply,
			FeedInTariff:        r.FeedInTariff,
			EstimatedAnnualCost: estimated,
			AnnualSavings:       savings,
		})
	}

	sort.Slice(plans, func(i, j int) bool {
		if plans[i].AnnualSavings != plans[j].AnnualSavings {
			return plans[i].AnnualSavings > plans[j].AnnualSavings
		}
		return plans[i].Retailer < plans[j].Retailer
	})

	research := strategy.MarketResearch{
		Plans:             plans,
		CurrentAnnualCost: annualCost,
		Confidence:        "medium",
	}
	if len(plans) > 0 {
		research.BestPlan = &plans[0]
		research.AnnualSavings = plans[0].AnnualSavings
	}
	return research, nil
}

// planID derives a stable Energy-Made-Easy style identifier from the
// retailer key and state.
func planID(key, state string) string {
	h := fnv.New32a()
	h.Write([]byte(key + "_" + state))
	prefix := strings.ToUpper(key)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("%s%06dMRE1", prefix, h.Sum32()%1000000)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
