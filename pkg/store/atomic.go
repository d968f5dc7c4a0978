package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Source reports where a load got its data from.
type Source int

const (
	SourceNone Source = iota
	SourcePrimary
	SourceBackup
)

// WriteQueue serializes writes per file path inside one process.
// It is not a cross-process lock; callers that run multiple processes
// must shard their data by directory instead.
type WriteQueue struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriteQueue creates an empty write queue.
func NewWriteQueue() *WriteQueue {
	return &WriteQueue{locks: make(map[string]*sync.Mutex)}
}

func (q *WriteQueue) lockFor(path string) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := filepath.Clean(path)
	l, ok := q.locks[key]
	if !ok {
		l = &sync.Mutex{}
		q.locks[key] = l
	}
	return l
}

// Do runs fn while holding the lock for path.
func (q *WriteQueue) Do(path string, fn func() error) error {
	l := q.lockFor(path)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// JSONFile persists one JSON document with an atomic commit and a
// last-good backup. Save writes to a temp file, renames it over the
// primary, and only then copies the previous primary to ".bak".
type JSONFile struct {
	Path  string
	queue *WriteQueue
}

// NewJSONFile creates a JSONFile whose saves go through queue.
func NewJSONFile(path string, queue *WriteQueue) *JSONFile {
	if queue == nil {
		queue = NewWriteQueue()
	}
	return &JSONFile{Path: path, queue: queue}
}

// BackupPath returns the sibling backup path.
func (f *JSONFile) BackupPath() string {
	return f.Path + ".bak"
}

// Load reads the primary file into v, falling back to the backup when
// the primary is missing or unparseable. It never fails: when neither
// file yields valid JSON, v is left untouched and SourceNone is returned.
func (f *JSONFile) Load(v interface{}) Source {
	if data, err := os.ReadFile(f.Path); err == nil {
		if json.Unmarshal(data, v) == nil {
			return SourcePrimary
		}
	}
	if data, err := os.ReadFile(f.BackupPath()); err == nil {
		if json.Unmarshal(data, v) == nil {
			return SourceBackup
		}
	}
	return SourceNone
}

// Save commits v atomically and retains the previous content as backup.
func (f *JSONFile) Save(v interface{}) error {
	return f.queue.Do(f.Path, func() error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", f.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
			return fmt.Errorf("mkdir for %s: %w", f.Path, err)
		}

		prev, prevErr := os.ReadFile(f.Path)

		tmp := f.Path + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return fmt.Errorf("write temp for %s: %w", f.Path, err)
		}
		if err := os.Rename(tmp, f.Path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("commit %s: %w", f.Path, err)
		}

		// Backup only after the rename succeeded, so .bak always holds
		// the last state that was fully committed before this save.
		if prevErr == nil {
			if err := os.WriteFile(f.BackupPath(), prev, 0644); err != nil {
				return fmt.Errorf("write backup for %s: %w", f.Path, err)
			}
		}
		return nil
	})
}
