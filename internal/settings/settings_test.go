package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", s.Host)
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, "localhost:8080", s.Addr())
	assert.Equal(t, "configs", s.ConfigDir)
	assert.Equal(t, "sessions", s.SessionsDir)
	assert.Equal(t, StoreFile, s.Store)
	assert.Equal(t, "sessions.db", s.SQLitePath)
	assert.Equal(t, "info", s.LogLevel)
	assert.True(t, s.LogPretty)
	assert.Equal(t, 24*time.Hour, s.SessionTTL)
	assert.Equal(t, time.Hour, s.CleanupInterval)
	assert.Equal(t, 5*time.Second, s.SyncInterval)
	assert.Equal(t, 100*time.Millisecond, s.FrameInterval)
	assert.False(t, s.Ngrok.Enabled)
}

func TestLoad_WithSettingsFile(t *testing.T) {
	dir := t.TempDir()
	content := `{
		"port": 9090,
		"store": "SQLite",
		"sessionTTL": "2h",
		"ngrok": {"enabled": true, "domain": "grid.example.dev"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid-explorer.json"), []byte(content), 0644))

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, StoreSQLite, s.Store)
	assert.Equal(t, 2*time.Hour, s.SessionTTL)
	assert.True(t, s.Ngrok.Enabled)
	assert.Equal(t, "grid.example.dev", s.Ngrok.Domain)
	assert.Equal(t, "localhost", s.Host)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid-explorer.json"), []byte(`{"port": 9090}`), 0644))

	t.Setenv("GRID_PORT", "7070")
	t.Setenv("CONFIG_DIR", "/srv/worlds")
	t.Setenv("NGROK_AUTHTOKEN", "tok")
	t.Setenv("GRID_LOG_LEVEL", "debug")

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 7070, s.Port)
	assert.Equal(t, "/srv/worlds", s.ConfigDir)
	assert.Equal(t, "tok", s.Ngrok.AuthToken)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid-explorer.json"), []byte(`{"port": `), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading settings file")
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			Port:            8080,
			Store:           "file",
			SessionTTL:      time.Hour,
			CleanupInterval: time.Minute,
			SyncInterval:    time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"valid", func(*Settings) {}, true},
		{"memory store", func(s *Settings) { s.Store = "memory" }, true},
		{"bad port", func(s *Settings) { s.Port = 70000 }, false},
		{"bad store", func(s *Settings) { s.Store = "redis" }, false},
		{"zero ttl", func(s *Settings) { s.SessionTTL = 0 }, false},
		{"zero sync", func(s *Settings) { s.SyncInterval = 0 }, false},
		{"negative frame interval", func(s *Settings) { s.FrameInterval = -time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSettings)
			}
		})
	}
}
