package mission

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/orbiterhq/orbiter-go/pkg/store"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// JournalEntry is one applied diff batch, recorded for audit.
type JournalEntry struct {
	ID               string          `json:"id"`
	Ts               time.Time       `json:"ts"`
	MissionID        string          `json:"missionId"`
	Actor            string          `json:"actor"`
	Operations       []DiffOperation `json:"operations"`
	ResultingVersion int             `json:"resultingVersion"`
}

// Journal is the append-only operation log, one JSON-Lines file per owner.
type Journal struct {
	Root string
}

// NewJournal creates a journal rooted at root.
func NewJournal(root string) *Journal {
	return &Journal{Root: root}
}

func (j *Journal) log(ownerID string) *store.AppendLog {
	return store.NewAppendLog(filepath.Join(j.Root, ownerID+".jsonl"))
}

// Record appends one entry for an applied batch.
func (j *Journal) Record(ownerID, missionID, actor string, ops []DiffOperation, resultingVersion int) error {
	entry := JournalEntry{
		ID:               uuid.New().String()[:8],
		Ts:               nowUTC(),
		MissionID:        missionID,
		Actor:            actor,
		Operations:       ops,
		ResultingVersion: resultingVersion,
	}
	return j.log(ownerID).Append(entry)
}

// List returns the owner's journal entries in append order. Lines that
// no longer parse are skipped here but stay in the file.
func (j *Journal) List(ownerID string) ([]JournalEntry, error) {
	lines, err := j.log(ownerID).Lines()
	if err != nil {
		return nil, err
	}
	var entries []JournalEntry
	for _, line := range lines {
		var e JournalEntry
		if json.Unmarshal(line, &e) != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
