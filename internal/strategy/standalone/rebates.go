package standalone

import (
	"context"
	"strings"

	"wattsmybill-backend/internal/strategy"
)

// Rebates at or above this value are flagged as high value.
const highValueThreshold = 500

// FindRebates matches the household against the embedded rebate table.
// Eligibility only ever adds rebates, so an incomplete bill analysis still
// yields a valid (possibly empty) result.
func (e *Engine) FindRebates(ctx context.Context, bill strategy.BillAnalysis, prefs strategy.Preferences) (strategy.RebateSearch, error) {
	if err := ctx.Err(); err != nil {
		return strategy.RebateSearch{}, err
	}

	state := bill.State
	if state == "" {
		state = prefs.State
	}
	if state == "" {
		state = e.defaultState
	}
	state = strings.ToUpper(state)

	var entries []rebateEntry
	entries = append(entries, e.rebates.States[state]...)
	if bill.HasSolar {
		entries = append(entries, e.rebates.Solar)
	}
	if bill.UsageCategory == "high" || bill.UsageCategory == "very_high" {
		entries = append(entries, e.rebates.HighUsage)
	}

	result := strategy.RebateSearch{Rebates: make([]strategy.Rebate, 0, len(entries))}
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		highValue := entry.Amount >= highValueThreshold
		result.Rebates = append(result.Rebates, strategy.Rebate{
			Name:        entry.Name,
			Provider:    entry.Provider,
			Amount:      entry.Amount,
			Eligibility: entry.Eligibility,
			HighValue:   highValue,
		})
		result.TotalValue += entry.Amount
		if highValue {
			result.HighValueCount++
		}
	}
	return result, nil
}
