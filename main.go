// Command grid-explorer starts the Grid Explorer server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from defaults, an optional grid-explorer.json, GRID_*
// environment variables (a .env file is loaded first) and finally flags.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/grid-explorer/api"
	"github.com/wricardo/grid-explorer/game/config"
	"github.com/wricardo/grid-explorer/game/engine"
	"github.com/wricardo/grid-explorer/game/service"
	"github.com/wricardo/grid-explorer/game/session"
	"github.com/wricardo/grid-explorer/internal/logging"
	"github.com/wricardo/grid-explorer/internal/settings"
	"github.com/wricardo/grid-explorer/transport/mcp"
	"github.com/wricardo/grid-explorer/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Grid Explorer Server"
)

// main loads .env, then runs the selected command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "grid-explorer",
		Usage:   "Drive a hover bike around a grid world and discover its zones",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port"},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host"},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing world configurations"},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory for file session storage"},
			&cli.StringFlag{Name: "store", Value: settings.StoreFile, Usage: "Session store: file, sqlite or memory"},
			&cli.StringFlag{Name: "settings-dir", Value: ".", Usage: "Directory searched for grid-explorer.json"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (or use NGROK_AUTHTOKEN env var)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, starting an internal HTTP server when needed",
				Action:  runStdioMCP,
			},
		},
	}
}

// settingsFromCommand loads settings and applies the flags that were set
func settingsFromCommand(cmd *cli.Command) (*settings.Settings, error) {
	s, err := settings.Load(cmd.String("settings-dir"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("port") {
		s.Port = cmd.Int("port")
	}
	if cmd.IsSet("host") {
		s.Host = cmd.String("host")
	}
	if cmd.IsSet("config-dir") {
		s.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("sessions-dir") {
		s.SessionsDir = cmd.String("sessions-dir")
	}
	if cmd.IsSet("store") {
		s.Store = cmd.String("store")
	}
	if cmd.Bool("debug") {
		s.LogLevel = "debug"
	}
	if cmd.Bool("ngrok") {
		s.Ngrok.Enabled = true
	}
	if cmd.IsSet("ngrok-auth") {
		s.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		s.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	return s, s.Validate()
}

// app holds the wired services shared by both modes
type app struct {
	settings    *settings.Settings
	logger      zerolog.Logger
	clock       clock.Clock
	configs     *config.Manager
	persistence session.SessionPersistence
	sessions    *session.Manager
	service     service.GameService
	hub         *websocket.Hub
}

// newApp wires config and session managers, the game service and the hub.
// Worlds publish to the hub; websocket commands go through the service.
func newApp(s *settings.Settings, logger zerolog.Logger, clk clock.Clock) (*app, error) {
	configManager, err := config.NewManager(s.ConfigDir, config.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	a := &app{
		settings: s,
		logger:   logger,
		clock:    clk,
		configs:  configManager,
		hub:      websocket.NewHub(websocket.WithLogger(logger)),
	}

	switch s.Store {
	case settings.StoreFile:
		a.persistence, err = session.NewFilePersistence(s.SessionsDir)
	case settings.StoreSQLite:
		a.persistence, err = session.NewSQLitePersistence(s.SQLitePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	opts := []session.Option{
		session.WithWorldFactory(hubWorlds(a.hub, logger, clk, s.FrameInterval)),
		session.WithClock(clk),
		session.WithLogger(logger),
	}
	if a.persistence != nil {
		opts = append(opts, session.WithPersistence(a.persistence, configManager))
	}
	a.sessions = session.NewManager(opts...)

	// Load persisted sessions on startup
	if err := a.sessions.LoadPersistedSessions(); err != nil {
		logger.Warn().Err(err).Msg("failed to load persisted sessions")
	}

	a.service = service.NewGameService(a.sessions, configManager, service.WithLogger(logger))
	a.hub.SetCommandHandler(commandHandler(a.service, a.hub, engine.DefaultKeyMap()))

	return a, nil
}

// hubWorlds builds worlds whose UI and renderer publish to the hub
func hubWorlds(hub *websocket.Hub, logger zerolog.Logger, clk clock.Clock, frameInterval time.Duration) session.WorldFactory {
	return func(sessionID string, cfg *engine.GameConfig) (*engine.World, error) {
		l := logger.With().Str("session", sessionID).Logger()
		return engine.NewWorld(cfg, engine.Dependencies{
			Renderer: websocket.NewFrameRenderer(hub, sessionID, clk, frameInterval),
			UI:       websocket.NewSessionUI(hub, sessionID, clk),
			Input:    engine.NewLatchedInput(),
			Clock:    clk,
			Logger:   &l,
		})
	}
}

// commandHandler applies inbound websocket messages to the session and pushes
// the resulting state
func commandHandler(svc service.GameService, hub *websocket.Hub, keys engine.KeyMap) websocket.CommandHandler {
	return func(sessionID string, msg websocket.ClientMessage) error {
		ctx := context.Background()

		var state *engine.WorldState
		var err error
		switch msg.Type {
		case "keys":
			return svc.SetInput(ctx, sessionID, keys.Snapshot(msg.Pressed))
		case "close_overlay":
			state, err = svc.CloseOverlay(ctx, sessionID, msg.OverlayID)
		case "pause":
			state, err = svc.Pause(ctx, sessionID)
		case "resume":
			state, err = svc.Resume(ctx, sessionID)
		case "reset":
			state, err = svc.Reset(ctx, sessionID)
		default:
			return fmt.Errorf("unknown message type %q", msg.Type)
		}
		if err != nil {
			return err
		}

		hub.BroadcastEvent(sessionID, websocket.EventState, state)
		return nil
	}
}

// handler combines the API server and the /mcp endpoint. baseURL is where the
// MCP tools reach the API.
func (a *app) handler(baseURL string) http.Handler {
	apiServer := api.NewServer(a.service, a.hub, api.WithLogger(a.logger))
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
	return mainRouter
}

// startBackground runs session expiry and, for file storage, pruning of
// sessions whose files were removed. Both stop with ctx.
func (a *app) startBackground(ctx context.Context) {
	go a.cleanupRoutine(ctx, a.clock.Ticker(a.settings.CleanupInterval))
	if a.settings.Store == settings.StoreFile {
		go a.syncRoutine(ctx, a.clock.Ticker(a.settings.SyncInterval))
	}
}

// cleanupRoutine periodically removes sessions that have not been accessed
// within the retention window.
func (a *app) cleanupRoutine(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.sessions.CleanupExpiredSessions(a.settings.SessionTTL); removed > 0 {
				a.logger.Info().Int("removed", removed).Msg("cleaned up expired sessions")
			}
		}
	}
}

// syncRoutine removes sessions from memory when their file was deleted
func (a *app) syncRoutine(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pruneOrphans()
		}
	}
}

func (a *app) pruneOrphans() int {
	if a.persistence == nil {
		return 0
	}

	pruned := 0
	for _, sess := range a.sessions.List() {
		if a.persistence.Exists(sess.ID) {
			continue
		}
		if err := a.sessions.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			a.logger.Info().Str("session", sess.ID).Msg("pruned session from memory (file deleted)")
		}
	}
	return pruned
}

// Close saves and closes every session, stops the hub and closes the store
func (a *app) Close() error {
	err := a.sessions.Close()
	a.hub.Stop()
	if closer, ok := a.persistence.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func setup(cmd *cli.Command) (*app, error) {
	s, err := settingsFromCommand(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.New(s.LogLevel, s.LogPretty)
	logger.Info().Str("version", Version).Str("command", cmd.Name).Msgf("starting %s", AppName)

	a, err := newApp(s, logger, clock.New())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return a, nil
}

// runServer starts the HTTP server with REST API, WebSocket hub, and an /mcp
// endpoint. If ngrok is enabled it also provisions a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hub.Run()
	a.startBackground(ctx)

	addr := a.settings.Addr()
	handler := a.handler(fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		a.logger.Info().
			Str("api", fmt.Sprintf("http://%s/api", addr)).
			Str("websocket", fmt.Sprintf("ws://%s/ws?sessionId=<session_id>", addr)).
			Str("mcp", fmt.Sprintf("http://%s/mcp", addr)).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	if a.settings.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.serveNgrok(ctx, handler)
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	a.logger.Info().Msg("server stopped")
	return nil
}

// serveNgrok serves handler through an ngrok tunnel until ctx is done
func (a *app) serveNgrok(ctx context.Context, handler http.Handler) {
	authToken := a.settings.Ngrok.AuthToken
	if authToken == "" {
		a.logger.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain := a.settings.Ngrok.Domain; domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		a.logger.Info().Str("domain", domain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	a.logger.Info().
		Str("url", ngrokURL).
		Str("api", ngrokURL+"/api").
		Str("mcp", ngrokURL+"/mcp").
		Msg("ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		a.logger.Error().Err(err).Msg("ngrok server error")
	}
	a.logger.Info().Msg("ngrok tunnel closed")
}

// externalAPI reports whether an API server already answers at baseURL
func externalAPI(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(strings.TrimSuffix(baseURL, "/") + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP runs an MCP stdio server. It reuses an API server already
// listening on the configured address; otherwise it starts an internal one on
// a random loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	externalURL := fmt.Sprintf("http://%s", a.settings.Addr())
	baseURL := externalURL

	if externalAPI(externalURL) {
		a.logger.Info().Str("url", externalURL).Msg("external API server found, using it for MCP")
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())

		go a.hub.Run()
		a.startBackground(ctx)

		httpServer := &http.Server{Handler: a.handler(baseURL)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				a.logger.Error().Err(err).Msg("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		a.logger.Info().Str("url", baseURL).Msg("started internal HTTP server for MCP stdio")
	}

	mcpClient := mcp.NewClient(baseURL)
	a.logger.Info().Str("api", baseURL).Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
