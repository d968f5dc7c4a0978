package autofix

import (
	"fmt"
	"sort"

	"github.com/orbiterhq/orbiter-go/pkg/mission"
)

// Fix classifications.
const (
	ClassSafeAutoApply = "safe_auto_apply"
	ClassNeedsApproval = "needs_approval"
)

// Fix is one proposed repair for a workflow graph.
type Fix struct {
	ID             string  `json:"id"`
	NodeID         string  `json:"nodeId,omitempty"`
	Kind           string  `json:"kind"`
	Description    string  `json:"description"`
	Confidence     float64 `json:"confidence"`
	Classification string  `json:"classification"`
}

// ApplyResult partitions fixes into those applied and those still
// waiting for approval.
type ApplyResult struct {
	AppliedFixIDs         []string `json:"appliedFixIds"`
	PendingApprovalFixIDs []string `json:"pendingApprovalFixIds"`
}

// ThresholdPolicy decides the auto-apply cutoff. Injectable so
// deployments can tune risk without touching the engine.
type ThresholdPolicy func() float64

// FixedThreshold returns a policy with a constant cutoff.
func FixedThreshold(v float64) ThresholdPolicy {
	return func() float64 { return v }
}

// Engine analyzes workflow graphs and proposes confidence-ranked fixes.
// Preview and Apply are deterministic for a given graph and threshold.
type Engine struct {
	Threshold ThresholdPolicy
}

// NewEngine creates an engine with the given threshold policy.
func NewEngine(policy ThresholdPolicy) *Engine {
	if policy == nil {
		policy = FixedThreshold(0.9)
	}
	return &Engine{Threshold: policy}
}

// Preview analyzes the graph and returns candidate fixes without
// mutating anything. Fixes are ordered by confidence, then id, so the
// same graph always previews identically.
func (e *Engine) Preview(m *mission.Mission) []Fix {
	threshold := e.Threshold()
	fixes := analyze(m)
	for i := range fixes {
		if fixes[i].Confidence >= threshold {
			fixes[i].Classification = ClassSafeAutoApply
		} else {
			fixes[i].Classification = ClassNeedsApproval
		}
	}
	sort.Slice(fixes, func(i, j int) bool {
		if fixes[i].Confidence != fixes[j].Confidence {
			return fixes[i].Confidence > fixes[j].Confidence
		}
		return fixes[i].ID < fixes[j].ID
	})
	return fixes
}

// Apply partitions the previewed fixes: at or above the threshold they
// apply without approval; below it they apply only when their id is in
// approvedFixIDs.
func (e *Engine) Apply(m *mission.Mission, approvedFixIDs []string) ApplyResult {
	approved := make(map[string]bool, len(approvedFixIDs))
	for _, id := range approvedFixIDs {
		approved[id] = true
	}

	result := ApplyResult{
		AppliedFixIDs:         []string{},
		PendingApprovalFixIDs: []string{},
	}
	for _, fix := range e.Preview(m) {
		if fix.Classification == ClassSafeAutoApply || approved[fix.ID] {
			result.AppliedFixIDs = append(result.AppliedFixIDs, fix.ID)
		} else {
			result.PendingApprovalFixIDs = append(result.PendingApprovalFixIDs, fix.ID)
		}
	}
	return result
}

// analyze runs the structural rules. Fix ids derive from the rule and
// the offending element, never from randomness.
func analyze(m *mission.Mission) []Fix {
	var fixes []Fix
	nodeIDs := make(map[string]bool, len(m.Nodes))
	hasTrigger := false
	for _, n := range m.Nodes {
		nodeIDs[n.ID] = true
		if n.Type == mission.NodeScheduleTrigger {
			hasTrigger = true
		}
	}

	if !hasTrigger && len(m.Nodes) > 0 {
		fixes = append(fixes, Fix{
			ID:          "add-trigger",
			Kind:        "missing_trigger",
			Description: "mission has no schedule-trigger node; add one so the graph can run",
			Confidence:  0.55,
		})
	}

	// Connections whose endpoints no longer exist.
	for _, c := range m.Connections {
		if !nodeIDs[c.FromNodeID] || !nodeIDs[c.ToNodeID] {
			fixes = append(fixes, Fix{
				ID:          fmt.Sprintf("drop-conn:%s->%s", c.FromNodeID, c.ToNodeID),
				Kind:        "dangling_connection",
				Description: fmt.Sprintf("connection %s -> %s references a missing node; remove it", c.FromNodeID, c.ToNodeID),
				Confidence:  0.97,
			})
		}
	}

	// Duplicate connections.
	seen := make(map[string]bool, len(m.Connections))
	for _, c := range m.Connections {
		key := c.FromNodeID + "->" + c.ToNodeID
		if seen[key] && nodeIDs[c.FromNodeID] && nodeIDs[c.ToNodeID] {
			fixes = append(fixes, Fix{
				ID:          "dedupe-conn:" + key,
				Kind:        "duplicate_connection",
				Description: fmt.Sprintf("connection %s appears more than once; keep a single edge", key),
				Confidence:  0.95,
			})
		}
		seen[key] = true
	}

	// Nodes no edge touches (triggers legitimately have no inbound).
	connected := make(map[string]bool)
	for _, c := range m.Connections {
		connected[c.FromNodeID] = true
		connected[c.ToNodeID] = true
	}
	for _, n := range m.Nodes {
		if len(m.Nodes) > 1 && !connected[n.ID] {
			fixes = append(fixes, Fix{
				ID:          "connect-node:" + n.ID,
				NodeID:      n.ID,
				Kind:        "disconnected_node",
				Description: fmt.Sprintf("node %s is not connected to the graph", n.ID),
				Confidence:  0.4,
			})
		}
		if n.Type == mission.NodeScheduleTrigger {
			if _, ok := n.Config["time"]; !ok {
				if _, ok := n.Config["expr"]; !ok {
					fixes = append(fixes, Fix{
						ID:          "set-trigger-time:" + n.ID,
						NodeID:      n.ID,
						Kind:        "missing_trigger_time",
						Description: fmt.Sprintf("schedule-trigger %s has no time or cron expression", n.ID),
						Confidence:  0.6,
					})
				}
			}
		}
	}

	return fixes
}
