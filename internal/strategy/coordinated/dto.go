package coordinated

import "wattsmybill-backend/internal/strategy"

// The agent runtime keeps its own field names; the to* methods below are the
// single place they are collapsed into the shared payload structs.

type agentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s agentStatus) errorMessage() string {
	if s.Error != "" {
		return s.Error
	}
	return "agent reported failure"
}

type billAnalysisRequest struct {
	AnalysisID string `json:"analysis_id"`
	FileName   string `json:"file_name"`
	Text       string `json:"text"`
	State      string `json:"state,omitempty"`
	Postcode   string `json:"postcode,omitempty"`
}

type billAnalysisResponse struct {
	agentStatus
	Analysis struct {
		BillData struct {
			Retailer      string  `json:"retailer"`
			TotalAmount   float64 `json:"total_amount"`
			UsageKWh      float64 `json:"usage_kwh"`
			BillingDays   int     `json:"billing_days"`
			BillingPeriod string  `json:"billing_period"`
			State         string  `json:"state"`
			Postcode      string  `json:"postcode"`
			TariffType    string  `json:"tariff_type"`
		} `json:"bill_data"`
		UsageProfile struct {
			DailyAverage  float64 `json:"daily_average"`
			UsageCategory string  `json:"usage_category"`
		} `json:"usage_profile"`
		CostBreakdown struct {
			CostPerKWh float64 `json:"cost_per_kwh"`
		} `json:"cost_breakdown"`
		SolarAnalysis struct {
			HasSolar     bool    `json:"has_solar"`
			ExportKWh    float64 `json:"export_kwh"`
			FeedInTariff float64 `json:"feed_in_tariff"`
		} `json:"solar_analysis"`
		EfficiencyScore float64 `json:"efficiency_score"`
		Confidence      float64 `json:"confidence"`
	} `json:"analysis"`
}

func (r billAnalysisResponse) toBillAnalysis() strategy.BillAnalysis {
	a := r.Analysis
	return strategy.BillAnalysis{
		Retailer:        a.BillData.Retailer,
		TotalAmount:     a.BillData.TotalAmount,
		UsageKWh:        a.BillData.UsageKWh,
		BillingDays:     a.BillData.BillingDays,
		BillingPeriod:   a.BillData.BillingPeriod,
		State:           a.BillData.State,
		Postcode:        a.BillData.Postcode,
		HasSolar:        a.SolarAnalysis.HasSolar,
		SolarExportKWh:  a.SolarAnalysis.ExportKWh,
		FeedInTariff:    a.SolarAnalysis.FeedInTariff,
		TariffType:      a.BillData.TariffType,
		DailyAverageKWh: a.UsageProfile.DailyAverage,
		CostPerKWh:      a.CostBreakdown.CostPerKWh,
		UsageCategory:   a.UsageProfile.UsageCategory,
		EfficiencyScore: a.EfficiencyScore,
		Confidence:      a.Confidence,
	}
}

type stageRequest struct {
	Bill strategy.BillAnalysis `json:"bill_analysis"`
}

type runtimePlan struct {
	PlanID              string  `json:"plan_id"`
	Retailer            string  `json:"retailer"`
	PlanName            string  `json:"plan_name"`
	UsageRate           float64 `json:"usage_rate"`
	SupplyChargeDaily   float64 `json:"supply_charge_daily"`
	SolarFeedInTariff   float64 `json:"solar_feed_in_tariff"`
	EstimatedAnnualCost float64 `json:"estimated_annual_cost"`
	AnnualSavings       float64 `json:"annual_savings"`
	SwitchConfidence    string  `json:"switch_confidence"`
}

func (p runtimePlan) toPlan() strategy.Plan {
	return strategy.Plan{
		ID:                  p.PlanID,
		Retailer:            p.Retailer,
		Name:                p.PlanName,
		UsageRate:           p.UsageRate,
		DailySupplyCharge:   p.SupplyChargeDaily,
		FeedInTariff:        p.SolarFeedInTariff,
		EstimatedAnnualCost: p.EstimatedAnnualCost,
		AnnualSavings:       p.AnnualSavings,
	}
}

type marketResearchResponse struct {
	agentStatus
	RecommendedPlans []runtimePlan `json:"recommended_plans"`
	BestPlan         *runtimePlan  `json:"best_plan"`
	SavingsAnalysis  struct {
		MaxAnnualSavings float64 `json:"max_annual_savings"`
	} `json:"savings_analysis"`
	ResearchParameters struct {
		CurrentAnnualCost float64 `json:"current_annual_cost"`
	} `json:"research_parameters"`
}

func (r marketResearchResponse) toMarketResearch() strategy.MarketResearch {
	out := strategy.MarketResearch{
		Plans:             make([]strategy.Plan, 0, len(r.RecommendedPlans)),
		CurrentAnnualCost: r.ResearchParameters.CurrentAnnualCost,
		AnnualSavings:     r.SavingsAnalysis.MaxAnnualSavings,
		Confidence:        "high",
		LiveData:          true,
	}
	for _, p := range r.RecommendedPlans {
		out.Plans = append(out.Plans, p.toPlan())
	}
	if r.BestPlan != nil {
		best := r.BestPlan.toPlan()
		out.BestPlan = &best
		if r.BestPlan.SwitchConfidence != "" {
			out.Confidence = r.BestPlan.SwitchConfidence
		}
	}
	return out
}

type rebateRequest struct {
	Bill  strategy.BillAnalysis `json:"bill_analysis"`
	State string                `json:"state,omitempty"`
}

type rebateResponse struct {
	agentStatus
	ApplicableRebates []struct {
		Name        string  `json:"name"`
		Value       float64 `json:"value"`
		Type        string  `json:"type"`
		Eligibility string  `json:"eligibility"`
	} `json:"applicable_rebates"`
	TotalRebateValue float64 `json:"total_rebate_value"`
}

func (r rebateResponse) toRebateSearch() strategy.RebateSearch {
	out := strategy.RebateSearch{
		Rebates:    make([]strategy.Rebate, 0, len(r.ApplicableRebates)),
		TotalValue: r.TotalRebateValue,
	}
	for _, item := range r.ApplicableRebates {
		highValue := item.Value >= 500
		out.Rebates = append(out.Rebates, strategy.Rebate{
			Name:        item.Name,
			Provider:    item.Type,
			Amount:      item.Value,
			Eligibility: item.Eligibility,
			HighValue:   highValue,
		})
		if highValue {
			out.HighValueCount++
		}
	}
	return out
}

type usageResponse struct {
	agentStatus
	OptimizationOpportunities []struct {
		Recommendation         string  `json:"recommendation"`
		Implementation         string  `json:"implementation"`
		PotentialAnnualSavings float64 `json:"potential_annual_savings"`
		Difficulty             string  `json:"difficulty"`
	} `json:"optimization_opportunities"`
	QuickWins          []string `json:"quick_wins"`
	TotalAnnualSavings float64  `json:"total_annual_savings"`
}

func (r usageResponse) toUsageOptimization() strategy.UsageOptimization {
	out := strategy.UsageOptimization{
		Opportunities: make([]strategy.OptimizationTip, 0, len(r.OptimizationOpportunities)),
		QuickWins:     r.QuickWins,
		AnnualSavings: r.TotalAnnualSavings,
	}
	for _, opp := range r.OptimizationOpportunities {
		out.Opportunities = append(out.Opportunities, strategy.OptimizationTip{
			Title:         opp.Recommendation,
			Description:   opp.Implementation,
			AnnualSavings: opp.PotentialAnnualSavings,
			Difficulty:    opp.Difficulty,
		})
	}
	return out
}

type synthesisRequest struct {
	Bill    strategy.BillAnalysis      `json:"bill_analysis"`
	Market  strategy.MarketResearch    `json:"market_research"`
	Rebates strategy.RebateSearch      `json:"rebate_search"`
	Usage   strategy.UsageOptimization `json:"usage_optimization"`
}

type synthesisResponse struct {
	agentStatus
	Recommendations []struct {
		Priority      int     `json:"priority"`
		Type          string  `json:"type"`
		Title         string  `json:"title"`
		Details       string  `json:"details"`
		AnnualSavings float64 `json:"annual_savings"`
	} `json:"recommendations"`
	TotalAnnualSavings float64 `json:"total_annual_savings"`
	Confidence         float64 `json:"confidence"`
	Summary            string  `json:"summary"`
}

func (r synthesisResponse) toSavingsSynthesis() strategy.SavingsSynthesis {
	out := strategy.SavingsSynthesis{
		Recommendations:    make([]strategy.Recommendation, 0, len(r.Recommendations)),
		TotalAnnualSavings: r.TotalAnnualSavings,
		Confidence:         r.Confidence,
		Summary:            r.Summary,
	}
	if out.Confidence == 0 {
		out.Confidence = 0.9
	}
	for _, rec := range r.Recommendations {
		out.Recommendations = append(out.Recommendations, strategy.Recommendation{
			Priority:      rec.Priority,
			Type:          rec.Type,
			Title:         rec.Title,
			Description:   rec.Details,
			AnnualSavings: rec.AnnualSavings,
		})
	}
	return out
}
