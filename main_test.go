package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/grid-explorer/game/engine"
	"github.com/wricardo/grid-explorer/game/service"
	"github.com/wricardo/grid-explorer/internal/settings"
	"github.com/wricardo/grid-explorer/transport/websocket"
)

func testSettings(t *testing.T, store string) *settings.Settings {
	t.Helper()
	return &settings.Settings{
		Host:            "127.0.0.1",
		Port:            0,
		ConfigDir:       t.TempDir(),
		SessionsDir:     t.TempDir(),
		Store:           store,
		LogLevel:        "disabled",
		SessionTTL:      24 * time.Hour,
		CleanupInterval: time.Hour,
		SyncInterval:    5 * time.Second,
		FrameInterval:   100 * time.Millisecond,
	}
}

func newTestApp(t *testing.T, store string) (*app, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	a, err := newApp(testSettings(t, store), zerolog.Nop(), clk)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, clk
}

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Grid Explorer Server" {
		t.Errorf("Unexpected app name %s", AppName)
	}
}

func TestSettingsFromCommand(t *testing.T) {
	var got *settings.Settings
	var gotErr error

	run := func(args ...string) {
		got, gotErr = nil, nil
		cmd := newCommand()
		cmd.Action = func(ctx context.Context, c *cli.Command) error {
			got, gotErr = settingsFromCommand(c)
			return nil
		}
		require.NoError(t, cmd.Run(context.Background(), append([]string{"grid-explorer", "--settings-dir", t.TempDir()}, args...)))
	}

	run()
	require.NoError(t, gotErr)
	assert.Equal(t, 8080, got.Port)
	assert.Equal(t, settings.StoreFile, got.Store)
	assert.Equal(t, "info", got.LogLevel)

	run("--port", "9191", "--store", "memory", "--debug", "--config-dir", "worlds", "--ngrok", "--ngrok-domain", "grid.example.dev")
	require.NoError(t, gotErr)
	assert.Equal(t, 9191, got.Port)
	assert.Equal(t, settings.StoreMemory, got.Store)
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, "worlds", got.ConfigDir)
	assert.True(t, got.Ngrok.Enabled)
	assert.Equal(t, "grid.example.dev", got.Ngrok.Domain)

	run("--store", "redis")
	assert.ErrorIs(t, gotErr, settings.ErrInvalidSettings)
}

func TestNewApp_InvalidConfigDir(t *testing.T) {
	s := testSettings(t, settings.StoreMemory)
	s.ConfigDir = "/non/existent/path"

	_, err := newApp(s, zerolog.Nop(), clock.NewMock())
	assert.Error(t, err)
}

func TestNewApp_Stores(t *testing.T) {
	for _, store := range []string{settings.StoreFile, settings.StoreSQLite, settings.StoreMemory} {
		t.Run(store, func(t *testing.T) {
			s := testSettings(t, store)
			s.SQLitePath = ""
			a, err := newApp(s, zerolog.Nop(), clock.NewMock())
			require.NoError(t, err)
			defer a.Close()

			info, err := a.service.CreateSession(context.Background(), "", service.SessionOptions{})
			require.NoError(t, err)
			assert.Equal(t, "classic", info.State.ConfigName)
			assert.Equal(t, store == settings.StoreMemory, a.persistence == nil)
		})
	}
}

func TestCommandHandler(t *testing.T) {
	a, _ := newTestApp(t, settings.StoreMemory)
	ctx := context.Background()

	info, err := a.service.CreateSession(ctx, "", service.SessionOptions{ID: "ws-test"})
	require.NoError(t, err)

	handle := commandHandler(a.service, a.hub, engine.DefaultKeyMap())

	require.NoError(t, handle(info.ID, websocket.ClientMessage{Type: "keys", Pressed: []string{"KeyW", "ShiftLeft"}}))

	require.NoError(t, handle(info.ID, websocket.ClientMessage{Type: "pause"}))
	state, err := a.service.GetWorldState(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, state.Paused)

	require.NoError(t, handle(info.ID, websocket.ClientMessage{Type: "resume"}))
	state, err = a.service.GetWorldState(ctx, info.ID)
	require.NoError(t, err)
	assert.False(t, state.Paused)

	require.NoError(t, handle(info.ID, websocket.ClientMessage{Type: "reset"}))

	err = handle(info.ID, websocket.ClientMessage{Type: "close_overlay"})
	assert.True(t, errors.Is(err, engine.ErrNoOverlayOpen), "got %v", err)

	err = handle(info.ID, websocket.ClientMessage{Type: "jump"})
	assert.ErrorContains(t, err, "unknown message type")

	err = handle("missing", websocket.ClientMessage{Type: "pause"})
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestHandler_Routes(t *testing.T) {
	a, _ := newTestApp(t, settings.StoreMemory)

	srv := httptest.NewUnstartedServer(nil)
	srv.Config.Handler = a.handler("http://" + srv.Listener.Addr().String())
	srv.Start()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/mcp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/mcp", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"drive"`)
	assert.Contains(t, string(body), `"close_overlay"`)

	assert.True(t, externalAPI(srv.URL))
	assert.False(t, externalAPI("http://127.0.0.1:1"))
}

func TestCleanupRoutine(t *testing.T) {
	a, clk := newTestApp(t, settings.StoreMemory)

	_, err := a.service.CreateSession(context.Background(), "", service.SessionOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, a.sessions.Count())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.startBackground(ctx)

	clk.Add(2 * time.Hour)
	assert.Equal(t, 1, a.sessions.Count(), "fresh sessions must survive cleanup")

	clk.Add(24 * time.Hour)
	assert.Eventually(t, func() bool { return a.sessions.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestPruneOrphans(t *testing.T) {
	a, _ := newTestApp(t, settings.StoreFile)

	info, err := a.service.CreateSession(context.Background(), "", service.SessionOptions{})
	require.NoError(t, err)
	require.True(t, a.persistence.Exists(info.ID))

	assert.Equal(t, 0, a.pruneOrphans())

	require.NoError(t, a.persistence.Delete(info.ID))
	assert.Equal(t, 1, a.pruneOrphans())
	assert.Equal(t, 0, a.sessions.Count())
}

func TestHubWorlds(t *testing.T) {
	hub := websocket.NewHub()
	defer hub.Stop()

	world, err := hubWorlds(hub, zerolog.Nop(), clock.NewMock(), 0)("abc", engine.DefaultGameConfig())
	require.NoError(t, err)
	defer world.Close()

	require.NoError(t, world.SetInput(engine.InputSnapshot{Forward: true}))
	require.NoError(t, world.Step())
	assert.Equal(t, uint64(1), world.State().Frame)
}
