package coordinated

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wattsmybill-backend/internal/strategy"
)

func TestProbeAvailable(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/agents/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"agents_available":true,"live_market_data":true,"real_agents":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	d := c.Probe(context.Background())
	if !d.Available || !d.LiveMarketData || !d.RealAgents {
		t.Errorf("descriptor = %+v", d)
	}
	if d.Tag != strategy.TagCoordinated {
		t.Errorf("tag = %q", d.Tag)
	}

	// Second probe inside the TTL must reuse the cached result.
	c.Probe(context.Background())
	if calls != 1 {
		t.Errorf("status endpoint called %d times, want 1", calls)
	}
}

func TestProbeRuntimeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	srv.Close()

	c := New(srv.URL, time.Second)
	if d := c.Probe(context.Background()); d.Available {
		t.Errorf("descriptor available for dead runtime: %+v", d)
	}
}

func TestAnalyzeBillMapsRuntimeFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/agents/bill-analysis" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"analysis": {
				"bill_data": {
					"retailer": "Origin Energy",
					"total_amount": 712.5,
					"usage_kwh": 2060,
					"billing_days": 91,
					"billing_period": "quarterly",
					"state": "QLD",
					"postcode": "4000",
					"tariff_type": "single_rate"
				},
				"usage_profile": {"daily_average": 22.6, "usage_category": "high"},
				"cost_breakdown": {"cost_per_kwh": 0.346},
				"solar_analysis": {"has_solar": false},
				"efficiency_score": 36,
				"confidence": 0.95
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	bill, err := c.AnalyzeBill(context.Background(), strategy.BillDocument{AnalysisID: "a1", Text: "..."}, strategy.Preferences{State: "QLD"})
	if err != nil {
		t.Fatalf("AnalyzeBill: %v", err)
	}
	if bill.Retailer != "Origin Energy" || bill.UsageKWh != 2060 || bill.BillingPeriod != "quarterly" {
		t.Errorf("bill = %+v", bill)
	}
	if bill.UsageCategory != "high" || bill.CostPerKWh != 0.346 {
		t.Errorf("derived fields = %+v", bill)
	}
}

func TestAnalyzeBillAgentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","error":"unreadable bill"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.AnalyzeBill(context.Background(), strategy.BillDocument{}, strategy.Preferences{})
	if err == nil {
		t.Fatal("expected error for agent failure")
	}
}

func TestResearchMarketMapsPlans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "success",
			"recommended_plans": [
				{"plan_id": "NEC123456MRE1", "retailer": "Nectr", "plan_name": "Nectr Saver",
				 "usage_rate": 0.238, "supply_charge_daily": 1.02, "solar_feed_in_tariff": 0.082,
				 "estimated_annual_cost": 2333.42, "annual_savings": 516.58, "switch_confidence": "high"}
			],
			"best_plan": {"plan_id": "NEC123456MRE1", "retailer": "Nectr", "plan_name": "Nectr Saver",
				"annual_savings": 516.58, "switch_confidence": "high"},
			"savings_analysis": {"max_annual_savings": 516.58},
			"research_parameters": {"current_annual_cost": 2850}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	research, err := c.ResearchMarket(context.Background(), strategy.BillAnalysis{})
	if err != nil {
		t.Fatalf("ResearchMarket: %v", err)
	}
	if research.BestPlan == nil || research.BestPlan.ID != "NEC123456MRE1" {
		t.Fatalf("best plan = %+v", research.BestPlan)
	}
	if research.AnnualSavings != 516.58 || research.CurrentAnnualCost != 2850 {
		t.Errorf("savings fields = %+v", research)
	}
	if !research.LiveData {
		t.Error("coordinated research must report live data")
	}
	if len(research.Plans) != 1 || research.Plans[0].DailySupplyCharge != 1.02 {
		t.Errorf("plans = %+v", research.Plans)
	}
}

func TestFindRebatesMapsValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "success",
			"applicable_rebates": [
				{"name": "QLD Electricity Rebate", "value": 372, "type": "state", "eligibility": "QLD households"},
				{"name": "Solar Battery Rebate", "value": 3000, "type": "state", "eligibility": "Solar owners"}
			],
			"total_rebate_value": 3372
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	rebates, err := c.FindRebates(context.Background(), strategy.BillAnalysis{}, strategy.Preferences{})
	if err != nil {
		t.Fatalf("FindRebates: %v", err)
	}
	if rebates.TotalValue != 3372 || rebates.HighValueCount != 1 {
		t.Errorf("rebates = %+v", rebates)
	}
	if rebates.Rebates[0].Amount != 372 || rebates.Rebates[0].Provider != "state" {
		t.Errorf("first rebate = %+v", rebates.Rebates[0])
	}
}

func TestOptimizeUsageMapsOpportunities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "success",
			"optimization_opportunities": [
				{"recommendation": "Shift usage to off-peak hours", "implementation": "Run appliances at night",
				 "potential_annual_savings": 200, "difficulty": "easy"}
			],
			"quick_wins": ["Run major appliances during off-peak hours"],
			"total_annual_savings": 200
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	usage, err := c.OptimizeUsage(context.Background(), strategy.BillAnalysis{})
	if err != nil {
		t.Fatalf("OptimizeUsage: %v", err)
	}
	if usage.AnnualSavings != 200 || len(usage.Opportunities) != 1 || len(usage.QuickWins) != 1 {
		t.Errorf("usage = %+v", usage)
	}
	if usage.Opportunities[0].Title != "Shift usage to off-peak hours" {
		t.Errorf("tip = %+v", usage.Opportunities[0])
	}
}

func TestSynthesizeSavingsDefaultsConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "success",
			"recommendations": [
				{"priority": 1, "type": "plan_switch", "title": "Switch to Nectr",
				 "details": "Saves $516 per year", "annual_savings": 516.58}
			],
			"total_annual_savings": 1488.58,
			"summary": "Save up to $1489 annually"
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	synthesis, err := c.SynthesizeSavings(context.Background(), strategy.BillAnalysis{}, strategy.MarketResearch{}, strategy.RebateSearch{}, strategy.UsageOptimization{})
	if err != nil {
		t.Fatalf("SynthesizeSavings: %v", err)
	}
	if synthesis.Confidence != 0.9 {
		t.Errorf("confidence = %v, want default 0.9", synthesis.Confidence)
	}
	if synthesis.TotalAnnualSavings != 1488.58 || len(synthesis.Recommendations) != 1 {
		t.Errorf("synthesis = %+v", synthesis)
	}
	if synthesis.Recommendations[0].Description != "Saves $516 per year" {
		t.Errorf("recommendation = %+v", synthesis.Recommendations[0])
	}
}

func TestStageCallNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if _, err := c.ResearchMarket(context.Background(), strategy.BillAnalysis{}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
