package slo

import (
	"math"
	"sort"
	"time"

	"github.com/orbiterhq/orbiter-go/pkg/telemetry"
)

// Status values.
const (
	StatusPass   = "pass"
	StatusAtRisk = "at_risk"
	StatusFail   = "fail"
)

// ObjectiveStatus is the evaluated state of one objective.
type ObjectiveStatus struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Status     string  `json:"status"`
	Observed   float64 `json:"observed"`
	Target     float64 `json:"target"`
	EventCount int     `json:"eventCount"`
}

// Summary rolls the objectives up.
type Summary struct {
	LookbackDays int `json:"lookbackDays"`
	TotalEvents  int `json:"totalEvents"`
	Passing      int `json:"passing"`
	AtRisk       int `json:"atRisk"`
	Failing      int `json:"failing"`
}

// Report is the full evaluation result.
type Report struct {
	Summary  Summary           `json:"summary"`
	Statuses []ObjectiveStatus `json:"statuses"`
}

// Evaluate aggregates events inside the lookback window against the
// policy. Read-only: no mutation, no external calls. lookbackDays
// overrides the policy default when positive; either way the window is
// clamped to [1, 30] days.
func Evaluate(events []telemetry.Event, policy Policy, lookbackDays int, now time.Time) Report {
	days := lookbackDays
	if days <= 0 {
		days = policy.LookbackDays
	}
	if days < 1 {
		days = 1
	}
	if days > 30 {
		days = 30
	}

	since := now.AddDate(0, 0, -days)
	var window []telemetry.Event
	for _, e := range events {
		if e.Ts.Before(since) || e.Ts.After(now) {
			continue
		}
		window = append(window, e)
	}

	report := Report{Summary: Summary{LookbackDays: days, TotalEvents: len(window)}}
	for _, obj := range policy.Objectives {
		status := evaluateObjective(window, obj)
		report.Statuses = append(report.Statuses, status)
		switch status.Status {
		case StatusPass:
			report.Summary.Passing++
		case StatusAtRisk:
			report.Summary.AtRisk++
		default:
			report.Summary.Failing++
		}
	}
	return report
}

func evaluateObjective(events []telemetry.Event, obj Objective) ObjectiveStatus {
	var matched []telemetry.Event
	for _, e := range events {
		if obj.EventType != "" && e.EventType != obj.EventType {
			continue
		}
		matched = append(matched, e)
	}

	status := ObjectiveStatus{Name: obj.Name, Kind: obj.Kind, EventCount: len(matched)}

	switch obj.Kind {
	case KindSuccessRate:
		status.Target = obj.MinSuccessRate
		if len(matched) == 0 {
			// No traffic is not a breach.
			status.Observed = 1
			status.Status = StatusPass
			return status
		}
		ok := 0
		for _, e := range matched {
			if e.Outcome == telemetry.OutcomeOK {
				ok++
			}
		}
		rate := float64(ok) / float64(len(matched))
		status.Observed = rate
		switch {
		case rate >= obj.MinSuccessRate:
			status.Status = StatusPass
		case rate >= obj.MinSuccessRate-obj.AtRiskMargin:
			status.Status = StatusAtRisk
		default:
			status.Status = StatusFail
		}

	case KindLatencyP95:
		status.Target = float64(obj.MaxLatencyMs)
		if len(matched) == 0 {
			status.Status = StatusPass
			return status
		}
		durations := make([]int64, 0, len(matched))
		for _, e := range matched {
			durations = append(durations, e.DurationMs)
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		idx := int(math.Ceil(0.95*float64(len(durations)))) - 1
		if idx < 0 {
			idx = 0
		}
		p95 := durations[idx]
		status.Observed = float64(p95)
		margin := int64(obj.AtRiskMargin * float64(obj.MaxLatencyMs))
		switch {
		case p95 <= obj.MaxLatencyMs:
			status.Status = StatusPass
		case p95 <= obj.MaxLatencyMs+margin:
			status.Status = StatusAtRisk
		default:
			status.Status = StatusFail
		}

	default:
		status.Status = StatusFail
	}
	return status
}
