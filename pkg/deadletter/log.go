package deadletter

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/orbiterhq/orbiter-go/pkg/store"
)

// Failure sources.
const (
	SourceScheduler = "scheduler"
	SourceTrigger   = "trigger"
)

// Entry is one failed delivery attempt, kept for audit and replay.
type Entry struct {
	ID              string                 `json:"id"`
	Ts              time.Time              `json:"ts"`
	ScheduleID      string                 `json:"scheduleId"`
	OwnerID         string                 `json:"ownerId,omitempty"`
	Source          string                 `json:"source"`
	Attempt         int                    `json:"attempt,omitempty"`
	Reason          string                 `json:"reason"`
	OutputOkCount   int                    `json:"outputOkCount"`
	OutputFailCount int                    `json:"outputFailCount"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Log is the append-only dead-letter log, one JSON-Lines file per owner
// plus a global file for entries with no owner.
type Log struct {
	Root string
}

// NewLog creates a dead-letter log rooted at root.
func NewLog(root string) *Log {
	return &Log{Root: root}
}

func (l *Log) file(ownerID string) *store.AppendLog {
	if ownerID == "" {
		ownerID = "global"
	}
	return store.NewAppendLog(filepath.Join(l.Root, ownerID+".jsonl"))
}

// Append assigns an id and timestamp and appends the entry.
func (l *Log) Append(e Entry) (Entry, error) {
	e.ID = uuid.New().String()[:8]
	e.Ts = time.Now().UTC()
	if err := l.file(e.OwnerID).Append(e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns the owner's entries in append order, skipping lines that
// no longer parse. The skipped lines stay on disk.
func (l *Log) List(ownerID string) ([]Entry, error) {
	lines, err := l.file(ownerID).Lines()
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, line := range lines {
		var e Entry
		if json.Unmarshal(line, &e) != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// PurgeForMission removes all entries whose ScheduleID matches
// missionID and rewrites the log atomically. Lines that fail to parse
// are kept verbatim so an unrelated corruption never loses records.
func (l *Log) PurgeForMission(ownerID, missionID string) (int, error) {
	log := l.file(ownerID)
	lines, err := log.Lines()
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	kept := make([][]byte, 0, len(lines))
	removed := 0
	for _, line := range lines {
		var e Entry
		if json.Unmarshal(line, &e) != nil {
			kept = append(kept, line)
			continue
		}
		if e.ScheduleID == missionID {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, log.Rewrite(kept)
}
