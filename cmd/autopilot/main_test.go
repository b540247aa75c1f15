package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/grid-explorer/api"
	"github.com/wricardo/grid-explorer/game/config"
	"github.com/wricardo/grid-explorer/game/service"
	"github.com/wricardo/grid-explorer/game/session"
)

// newGameServer runs the real API over the built-in world
func newGameServer(t *testing.T) *httptest.Server {
	t.Helper()
	configs, err := config.NewManager(t.TempDir())
	require.NoError(t, err)

	sessions := session.NewManager()
	t.Cleanup(func() { sessions.Close() })

	svc := service.NewGameService(sessions, configs)
	srv := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestDrive_CompletesBuiltInWorld(t *testing.T) {
	srv := newGameServer(t)
	ctx := context.Background()

	client := NewClient(srv.URL + "/")
	info, err := client.CreateSession(ctx, "")
	require.NoError(t, err)

	cfg := client.LoadConfig(ctx, info.ConfigName)
	state, err := client.Reset(ctx)
	require.NoError(t, err)

	pilot := NewPilot(cfg, state, zerolog.Nop())
	final, steps, err := Drive(ctx, client, pilot, state, 500, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, final.Progress.Completed)
	assert.Equal(t, 125, final.Progress.XP)
	assert.Len(t, final.Progress.VisitedZoneIDs, 5)
	assert.Positive(t, steps)
}

func TestDrive_StepLimit(t *testing.T) {
	srv := newGameServer(t)
	ctx := context.Background()

	client := NewClient(srv.URL)
	info, err := client.CreateSession(ctx, "")
	require.NoError(t, err)

	pilot := NewPilot(client.LoadConfig(ctx, info.ConfigName), info.State, zerolog.Nop())
	_, steps, err := Drive(ctx, client, pilot, info.State, 2, zerolog.Nop())
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Equal(t, 2, steps)
}

func TestClient_Errors(t *testing.T) {
	srv := newGameServer(t)
	ctx := context.Background()

	client := NewClient(srv.URL)
	client.sessionID = "missing"

	_, err := client.GetSession(ctx)
	assert.ErrorContains(t, err, "not found")

	_, err = client.CreateSession(ctx, "no-such-world")
	assert.Error(t, err)

	// unknown configs fall back to the built-in world
	assert.Equal(t, "classic", client.LoadConfig(ctx, "no-such-world").Name)
}

func TestOpenSession(t *testing.T) {
	srv := newGameServer(t)
	ctx := context.Background()
	sessionFile := filepath.Join(t.TempDir(), ".session")

	first := NewClient(srv.URL)
	created, err := openSession(ctx, first, "", sessionFile, "", zerolog.Nop())
	require.NoError(t, err)

	saved, err := os.ReadFile(sessionFile)
	require.NoError(t, err)
	assert.Equal(t, created.ID, string(saved))

	second := NewClient(srv.URL)
	resumed, err := openSession(ctx, second, "", sessionFile, "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, created.ID, resumed.ID)

	// a stale ID creates a fresh session
	third := NewClient(srv.URL)
	fresh, err := openSession(ctx, third, "gone", "", "", zerolog.Nop())
	require.NoError(t, err)
	assert.NotEqual(t, "gone", fresh.ID)
}
