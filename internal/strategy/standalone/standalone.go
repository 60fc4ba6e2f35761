// Package standalone implements the local execution strategy: regex bill
// parsing plus embedded rate and rebate tables. It is always available and
// serves as the downgrade target when the agent runtime is not.
package standalone

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"wattsmybill-backend/internal/strategy"
)

//go:embed plans.yaml
var plansYAML []byte

//go:embed rebates.yaml
var rebatesYAML []byte

type planRate struct {
	Key          string  `yaml:"key"`
	Name         string  `yaml:"name"`
	UsageRate    float64 `yaml:"usage_rate"`
	DailySupply  float64 `yaml:"daily_supply"`
	FeedInTariff float64 `yaml:"feed_in_tariff"`
}

type rebateEntry struct {
	Name        string  `yaml:"name"`
	Provider    string  `yaml:"provider"`
	Amount      float64 `yaml:"amount"`
	Eligibility string  `yaml:"eligibility"`
}

type rebateTable struct {
	States    map[string][]rebateEntry `yaml:"states"`
	Solar     rebateEntry              `yaml:"solar"`
	HighUsage rebateEntry              `yaml:"high_usage"`
}

// Engine runs all five stages locally.
type Engine struct {
	defaultState string
	plans        []planRate
	rebates      rebateTable
}

// New loads the embedded rate and rebate tables. defaultState fills in when
// neither the bill nor the caller supplies a state.
func New(defaultState string) (*Engine, error) {
	var plans struct {
		Retailers []planRate `yaml:"retailers"`
	}
	if err := yaml.Unmarshal(plansYAML, &plans); err != nil {
		return nil, fmt.Errorf("load plan table: %w", err)
	}
	if len(plans.Retailers) == 0 {
		return nil, fmt.Errorf("plan table is empty")
	}

	var rebates rebateTable
	if err := yaml.Unmarshal(rebatesYAML, &rebates); err != nil {
		return nil, fmt.Errorf("load rebate table: %w", err)
	}

	if defaultState == "" {
		defaultState = "NSW"
	}
	return &Engine{
		defaultState: defaultState,
		plans:        plans.Retailers,
		rebates:      rebates,
	}, nil
}

func (e *Engine) Tag() string { return strategy.TagStandalone }
