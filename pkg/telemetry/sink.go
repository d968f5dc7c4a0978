package telemetry

import (
	"encoding/json"
	"time"

	"github.com/orbiterhq/orbiter-go/pkg/store"
)

// Outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Event is one append-only telemetry record. The SLO evaluator consumes
// these read-only.
type Event struct {
	Ts         time.Time `json:"ts"`
	OwnerID    string    `json:"ownerId"`
	EventType  string    `json:"eventType"`
	DurationMs int64     `json:"durationMs,omitempty"`
	Outcome    string    `json:"outcome"`
}

// Sink appends events to a JSON-Lines file.
type Sink struct {
	log *store.AppendLog
}

// NewSink creates a sink writing to path.
func NewSink(path string) *Sink {
	return &Sink{log: store.NewAppendLog(path)}
}

// Record appends one event. Telemetry is best-effort; callers may
// ignore the error.
func (s *Sink) Record(e Event) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	return s.log.Append(e)
}

// Load returns events at or after since, skipping unparseable lines.
func (s *Sink) Load(since time.Time) ([]Event, error) {
	lines, err := s.log.Lines()
	if err != nil {
		return nil, err
	}
	var events []Event
	for _, line := range lines {
		var e Event
		if json.Unmarshal(line, &e) != nil {
			continue
		}
		if e.Ts.Before(since) {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
