// Package coordinated implements the execution strategy backed by the remote
// agent runtime. Each stage is one HTTP call; the runtime's response shapes
// are mapped into the shared stage payloads here so nothing downstream sees
// runtime field names.
package coordinated

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"wattsmybill-backend/internal/strategy"
)

// Probe results are reused briefly so a polling UI does not hammer the
// runtime's status endpoint.
const probeCacheTTL = 15 * time.Second

// Client talks to the agent runtime.
type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.Mutex
	cached      strategy.Descriptor
	cachedUntil time.Time
}

// New builds a client for the runtime at baseURL. timeout bounds every
// stage call; the probe uses a shorter bound internally.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Tag() string { return strategy.TagCoordinated }

// Probe checks the runtime's status endpoint. Failures never surface as
// errors; an unreachable runtime is simply not available.
func (c *Client) Probe(ctx context.Context) strategy.Descriptor {
	c.mu.Lock()
	if time.Now().Before(c.cachedUntil) {
		d := c.cached
		c.mu.Unlock()
		return d
	}
	c.mu.Unlock()

	d := strategy.Descriptor{Tag: strategy.TagCoordinated}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/agents/status", nil)
	if err == nil {
		var resp *http.Response
		resp, err = c.http.Do(req)
		if err == nil {
			defer resp.Body.Close()
			var body struct {
				AgentsAvailable bool `json:"agents_available"`
				LiveMarketData  bool `json:"live_market_data"`
				RealAgents      bool `json:"real_agents"`
			}
			if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&body) == nil {
				d.Available = body.AgentsAvailable
				d.LiveMarketData = body.LiveMarketData
				d.RealAgents = body.RealAgents
			}
		}
	}

	c.mu.Lock()
	c.cached = d
	c.cachedUntil = time.Now().Add(probeCacheTTL)
	c.mu.Unlock()
	return d
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent runtime call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("agent runtime call %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// AnalyzeBill runs the bill-analysis agent.
func (c *Client) AnalyzeBill(ctx context.Context, doc strategy.BillDocument, prefs strategy.Preferences) (strategy.BillAnalysis, error) {
	req := billAnalysisRequest{
		AnalysisID: doc.AnalysisID,
		FileName:   doc.FileName,
		Text:       doc.Text,
		State:      prefs.State,
		Postcode:   prefs.Postcode,
	}
	var resp billAnalysisResponse
	if err := c.postJSON(ctx, "/api/v1/agents/bill-analysis", req, &resp); err != nil {
		return strategy.BillAnalysis{}, err
	}
	if resp.Status != "success" {
		return strategy.BillAnalysis{}, fmt.Errorf("bill analysis agent: %s", resp.errorMessage())
	}
	return resp.toBillAnalysis(), nil
}

// ResearchMarket runs the market-research agent.
func (c *Client) ResearchMarket(ctx context.Context, bill strategy.BillAnalysis) (strategy.MarketResearch, error) {
	var resp marketResearchResponse
	if err := c.postJSON(ctx, "/api/v1/agents/market-research", stageRequest{Bill: bill}, &resp); err != nil {
		return strategy.MarketResearch{}, err
	}
	if resp.Status != "success" {
		return strategy.MarketResearch{}, fmt.Errorf("market research agent: %s", resp.errorMessage())
	}
	return resp.toMarketResearch(), nil
}

// FindRebates runs the rebate-hunt agent.
func (c *Client) FindRebates(ctx context.Context, bill strategy.BillAnalysis, prefs strategy.Preferences) (strategy.RebateSearch, error) {
	req := rebateRequest{Bill: bill, State: prefs.State}
	var resp rebateResponse
	if err := c.postJSON(ctx, "/api/v1/agents/rebate-hunt", req, &resp); err != nil {
		return strategy.RebateSearch{}, err
	}
	if resp.Status != "success" {
		return strategy.RebateSearch{}, fmt.Errorf("rebate agent: %s", resp.errorMessage())
	}
	return resp.toRebateSearch(), nil
}

// OptimizeUsage runs the usage-optimization agent.
func (c *Client) OptimizeUsage(ctx context.Context, bill strategy.BillAnalysis) (strategy.UsageOptimization, error) {
	var resp usageResponse
	if err := c.postJSON(ctx, "/api/v1/agents/usage-optimization", stageRequest{Bill: bill}, &resp); err != nil {
		return strategy.UsageOptimization{}, err
	}
	if resp.Status != "success" {
		return strategy.UsageOptimization{}, fmt.Errorf("usage optimization agent: %s", resp.errorMessage())
	}
	return resp.toUsageOptimization(), nil
}

// SynthesizeSavings runs the savings-synthesis agent over all prior outputs.
func (c *Client) SynthesizeSavings(ctx context.Context, bill strategy.BillAnalysis, market strategy.MarketResearch, rebates strategy.RebateSearch, usage strategy.UsageOptimization) (strategy.SavingsSynthesis, error) {
	req := synthesisRequest{Bill: bill, Market: market, Rebates: rebates, Usage: usage}
	var resp synthesisResponse
	if err := c.postJSON(ctx, "/api/v1/agents/savings-synthesis", req, &resp); err != nil {
		return strategy.SavingsSynthesis{}, err
	}
	if resp.Status != "success" {
		return strategy.SavingsSynthesis{}, fmt.Errorf("synthesis agent: %s", resp.errorMessage())
	}
	return resp.toSavingsSynthesis(), nil
}
