package mission

import (
	"errors"
	"fmt"
)

// Diff operation kinds.
const (
	OpAddNode          = "addNode"
	OpRemoveNode       = "removeNode"
	OpUpdateNode       = "updateNode"
	OpMoveNode         = "moveNode"
	OpAddConnection    = "addConnection"
	OpRemoveConnection = "removeConnection"
)

// ErrValidation marks a rejected operation payload. Nothing is mutated
// when any operation in a batch fails validation.
var ErrValidation = errors.New("invalid diff operation")

// DiffOperation is a tagged variant over the supported graph mutations.
// Op selects the kind; the other fields carry the kind-specific payload.
type DiffOperation struct {
	Op string `json:"op"`

	// addNode
	Node *Node `json:"node,omitempty"`

	// removeNode, updateNode, moveNode
	NodeID string `json:"nodeId,omitempty"`

	// updateNode: fields merged shallowly into the node's config
	Config map[string]interface{} `json:"config,omitempty"`

	// moveNode
	Position *Position `json:"position,omitempty"`

	// addConnection, removeConnection
	FromNodeID string `json:"fromNodeId,omitempty"`
	ToNodeID   string `json:"toNodeId,omitempty"`
}

// Apply result kinds.
const (
	ResultApplied         = "applied"
	ResultVersionConflict = "version_conflict"
)

// ApplyResult reports the outcome of one diff batch.
type ApplyResult struct {
	Result       string   `json:"result"`
	Mission      *Mission `json:"mission,omitempty"`
	AppliedCount int      `json:"appliedCount"`
}

// Engine applies diff batches to stored missions under optimistic
// concurrency and journals every applied batch.
type Engine struct {
	Store   *Store
	Journal *Journal
}

// NewEngine creates a diff engine writing through store and journal.
func NewEngine(s *Store, j *Journal) *Engine {
	return &Engine{Store: s, Journal: j}
}

// Apply loads the mission, checks expectedVersion, applies the batch in
// order, and commits it as a single version bump. A stale expected
// version returns a version_conflict result and mutates nothing, which
// also makes duplicate submissions of an already-applied batch fail
// cleanly. Validation failures return an error and mutate nothing.
func (e *Engine) Apply(ownerID, missionID string, ops []DiffOperation, expectedVersion int, actor string) (*ApplyResult, error) {
	m, err := e.Store.Get(ownerID, missionID)
	if err != nil {
		return nil, err
	}

	if m.Version != expectedVersion {
		return &ApplyResult{Result: ResultVersionConflict, Mission: m}, nil
	}

	next := m.Clone()
	for i, op := range ops {
		if err := applyOne(next, op); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, op.Op, err)
		}
	}

	next.Version++
	next.UpdatedAt = nowUTC()
	if err := e.Store.Save(next); err != nil {
		return nil, err
	}
	if e.Journal != nil {
		if err := e.Journal.Record(next.OwnerID, next.ID, actor, ops, next.Version); err != nil {
			return nil, err
		}
	}

	return &ApplyResult{Result: ResultApplied, Mission: next, AppliedCount: len(ops)}, nil
}

func applyOne(m *Mission, op DiffOperation) error {
	switch op.Op {
	case OpAddNode:
		if op.Node == nil || op.Node.ID == "" {
			return fmt.Errorf("%w: addNode requires a node with an id", ErrValidation)
		}
		if m.FindNode(op.Node.ID) != nil {
			return fmt.Errorf("%w: duplicate node id %q", ErrValidation, op.Node.ID)
		}
		m.Nodes = append(m.Nodes, *op.Node)

	case OpRemoveNode:
		if m.FindNode(op.NodeID) == nil {
			return fmt.Errorf("%w: node %q not found", ErrValidation, op.NodeID)
		}
		nodes := m.Nodes[:0]
		for _, n := range m.Nodes {
			if n.ID != op.NodeID {
				nodes = append(nodes, n)
			}
		}
		m.Nodes = nodes
		// Cascade: drop every connection touching the node.
		conns := m.Connections[:0]
		for _, c := range m.Connections {
			if c.FromNodeID != op.NodeID && c.ToNodeID != op.NodeID {
				conns = append(conns, c)
			}
		}
		m.Connections = conns

	case OpUpdateNode:
		n := m.FindNode(op.NodeID)
		if n == nil {
			return fmt.Errorf("%w: node %q not found", ErrValidation, op.NodeID)
		}
		if n.Config == nil {
			n.Config = make(map[string]interface{}, len(op.Config))
		}
		for k, v := range op.Config {
			n.Config[k] = v
		}

	case OpMoveNode:
		n := m.FindNode(op.NodeID)
		if n == nil {
			return fmt.Errorf("%w: node %q not found", ErrValidation, op.NodeID)
		}
		if op.Position == nil {
			return fmt.Errorf("%w: moveNode requires a position", ErrValidation)
		}
		n.Position = *op.Position

	case OpAddConnection:
		if m.FindNode(op.FromNodeID) == nil || m.FindNode(op.ToNodeID) == nil {
			return fmt.Errorf("%w: connection endpoints %q -> %q must exist", ErrValidation, op.FromNodeID, op.ToNodeID)
		}
		m.Connections = append(m.Connections, Connection{FromNodeID: op.FromNodeID, ToNodeID: op.ToNodeID})

	case OpRemoveConnection:
		if m.FindNode(op.FromNodeID) == nil || m.FindNode(op.ToNodeID) == nil {
			return fmt.Errorf("%w: connection endpoints %q -> %q must exist", ErrValidation, op.FromNodeID, op.ToNodeID)
		}
		conns := m.Connections[:0]
		for _, c := range m.Connections {
			if c.FromNodeID != op.FromNodeID || c.ToNodeID != op.ToNodeID {
				conns = append(conns, c)
			}
		}
		m.Connections = conns

	default:
		return fmt.Errorf("%w: unknown op %q", ErrValidation, op.Op)
	}
	return nil
}
