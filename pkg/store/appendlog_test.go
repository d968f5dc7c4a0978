package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLogAppendAndLines(t *testing.T) {
	l := NewAppendLog(filepath.Join(t.TempDir(), "log.jsonl"))

	require.NoError(t, l.Append(map[string]string{"k": "one"}))
	require.NoError(t, l.Append(map[string]string{"k": "two"}))

	lines, err := l.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"k":"one"}`, string(lines[0]))
	assert.JSONEq(t, `{"k":"two"}`, string(lines[1]))
}

func TestAppendLogMissingFileIsEmpty(t *testing.T) {
	l := NewAppendLog(filepath.Join(t.TempDir(), "absent.jsonl"))
	lines, err := l.Lines()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestAppendLogRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	l := NewAppendLog(path)

	require.NoError(t, l.Append(map[string]string{"k": "keep"}))
	require.NoError(t, l.Append(map[string]string{"k": "drop"}))

	lines, err := l.Lines()
	require.NoError(t, err)
	require.NoError(t, l.Rewrite(lines[:1]))

	after, err := l.Lines()
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.JSONEq(t, `{"k":"keep"}`, string(after[0]))

	// Rewrite goes through a temp file; no leftovers.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
