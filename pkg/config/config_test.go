package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 30, cfg.Scheduler.TickSeconds)
	assert.Equal(t, 0.9, cfg.Autofix.LowRiskConfidenceThreshold)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"workspace": "/data/orbiter",
		"channels": {"telegram": {"enabled": true, "token": "tok"}},
		"scheduler": {"tickSeconds": 5, "deliverTimeoutSecs": 10}
	}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/orbiter", cfg.Workspace)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, "tok", cfg.Channels.Telegram.Token)
	assert.Equal(t, 5, cfg.Scheduler.TickSeconds)

	// Fields the file does not mention keep their defaults.
	assert.Equal(t, 0.9, cfg.Autofix.LowRiskConfidenceThreshold)
}

func TestLoadConfigBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
