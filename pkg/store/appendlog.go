package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AppendLog is a JSON-Lines log: one marshalled record per line.
// Readers get raw lines back so that records which no longer parse are
// never lost by a caller that rewrites the log.
type AppendLog struct {
	Path string
	mu   sync.Mutex
}

// NewAppendLog creates an append log at path.
func NewAppendLog(path string) *AppendLog {
	return &AppendLog{Path: path}
}

// Append marshals v and appends it as a single line.
func (l *AppendLog) Append(v interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", l.Path, err)
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.Path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append to %s: %w", l.Path, err)
	}
	return nil
}

// Lines returns every non-empty line in the log. A missing file is an
// empty log, not an error.
func (l *AppendLog) Lines() ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLines()
}

func (l *AppendLog) readLines() ([][]byte, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// Rewrite replaces the log content with the given lines via a temp file
// and an atomic rename.
func (l *AppendLog) Rewrite(lines [][]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", l.Path, err)
	}
	tmp := l.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open temp for %s: %w", l.Path, err)
	}
	for _, line := range lines {
		if _, err := f.Write(append(line, '\n')); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write temp for %s: %w", l.Path, err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp for %s: %w", l.Path, err)
	}
	if err := os.Rename(tmp, l.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", l.Path, err)
	}
	return nil
}
