package mission

import "time"

// Mission status values.
const (
	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusDeleted = "deleted"
)

// Node types the graph layer knows about. The core validates structure
// only; what a node does at execution time is someone else's business.
const (
	NodeScheduleTrigger = "schedule-trigger"
	NodeAction          = "action"
	NodeCondition       = "condition"
	NodeAI              = "ai"
	NodeFetch           = "fetch"
)

// Position is a node's placement on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one vertex of a mission graph.
type Node struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Config   map[string]interface{} `json:"config,omitempty"`
	Position Position               `json:"position"`
}

// Connection is a directed edge between two nodes.
type Connection struct {
	FromNodeID string `json:"fromNodeId"`
	ToNodeID   string `json:"toNodeId"`
}

// Mission is a user-owned automation graph. It is mutated only through
// the diff engine, which bumps Version once per applied batch.
type Mission struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"ownerId"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Version     int          `json:"version"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// FindNode returns the node with the given id, or nil.
func (m *Mission) FindNode(id string) *Node {
	for i := range m.Nodes {
		if m.Nodes[i].ID == id {
			return &m.Nodes[i]
		}
	}
	return nil
}

// ScheduleTrigger returns the mission's schedule-trigger node, or nil.
func (m *Mission) ScheduleTrigger() *Node {
	for i := range m.Nodes {
		if m.Nodes[i].Type == NodeScheduleTrigger {
			return &m.Nodes[i]
		}
	}
	return nil
}

// Clone returns a deep copy so the diff engine can mutate freely and
// discard on validation failure.
func (m *Mission) Clone() *Mission {
	out := *m
	out.Nodes = make([]Node, len(m.Nodes))
	for i, n := range m.Nodes {
		out.Nodes[i] = n
		if n.Config != nil {
			cfg := make(map[string]interface{}, len(n.Config))
			for k, v := range n.Config {
				cfg[k] = v
			}
			out.Nodes[i].Config = cfg
		}
	}
	out.Connections = make([]Connection, len(m.Connections))
	copy(out.Connections, m.Connections)
	return &out
}
