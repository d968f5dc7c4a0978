package slo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Objective kinds.
const (
	KindSuccessRate = "success_rate"
	KindLatencyP95  = "latency_p95"
)

// Objective is one reliability target.
type Objective struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"`

	// success_rate: minimum fraction of ok outcomes, 0..1.
	MinSuccessRate float64 `yaml:"minSuccessRate,omitempty" json:"minSuccessRate,omitempty"`

	// latency_p95: ceiling in milliseconds.
	MaxLatencyMs int64 `yaml:"maxLatencyMs,omitempty" json:"maxLatencyMs,omitempty"`

	// Events narrower than this type are ignored; empty matches all.
	EventType string `yaml:"eventType,omitempty" json:"eventType,omitempty"`

	// AtRiskMargin widens the threshold into a warning band.
	AtRiskMargin float64 `yaml:"atRiskMargin,omitempty" json:"atRiskMargin,omitempty"`
}

// Policy is the deployment's SLO definition.
type Policy struct {
	LookbackDays int         `yaml:"lookbackDays" json:"lookbackDays"`
	Objectives   []Objective `yaml:"objectives" json:"objectives"`
}

// DefaultPolicy is used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		LookbackDays: 7,
		Objectives: []Objective{
			{Name: "schedule-success", Kind: KindSuccessRate, EventType: "schedule.fire", MinSuccessRate: 0.99, AtRiskMargin: 0.005},
			{Name: "schedule-latency", Kind: KindLatencyP95, EventType: "schedule.fire", MaxLatencyMs: 5000},
		},
	}
}

// LoadPolicy reads a YAML policy file. A missing path yields defaults.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return Policy{}, fmt.Errorf("read slo policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse slo policy: %w", err)
	}
	if p.LookbackDays == 0 {
		p.LookbackDays = DefaultPolicy().LookbackDays
	}
	return p, nil
}
