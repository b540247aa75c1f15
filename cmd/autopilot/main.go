// Command autopilot plays a Grid Explorer session over the REST API until
// every zone is discovered. It plans a tour, steers with fixed-step advances
// and dismisses each overlay as it opens.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/grid-explorer/game/engine"
	"github.com/wricardo/grid-explorer/game/service"
	"github.com/wricardo/grid-explorer/internal/logging"
)

// Client talks to the game server for a single session
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type commandResponse struct {
	Message string             `json:"message"`
	State   *engine.WorldState `json:"state"`
}

func (c *Client) call(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.call(ctx, http.MethodPost, "/api/sessions", map[string]string{"config_id": configID}, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) GetSession(ctx context.Context) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.call(ctx, http.MethodGet, c.sessionPath(""), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// LoadConfig fetches a world config; the built-in world is used when the
// server has no file for it
func (c *Client) LoadConfig(ctx context.Context, name string) *engine.GameConfig {
	var cfg engine.GameConfig
	if err := c.call(ctx, http.MethodGet, "/api/configs/"+url.PathEscape(name), nil, &cfg); err != nil {
		return engine.DefaultGameConfig()
	}
	return &cfg
}

func (c *Client) Advance(ctx context.Context, step Step) (*service.AdvanceResult, error) {
	req := map[string]interface{}{"frames": step.Frames, "keys": step.Keys}
	var result service.AdvanceResult
	if err := c.call(ctx, http.MethodPost, c.sessionPath("/advance"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) command(ctx context.Context, suffix string) (*engine.WorldState, error) {
	var resp commandResponse
	if err := c.call(ctx, http.MethodPost, c.sessionPath(suffix), nil, &resp); err != nil {
		return nil, err
	}
	return resp.State, nil
}

func (c *Client) CloseOverlay(ctx context.Context, overlayID string) (*engine.WorldState, error) {
	return c.command(ctx, "/overlays/"+url.PathEscape(overlayID)+"/close")
}

func (c *Client) Resume(ctx context.Context) (*engine.WorldState, error) {
	return c.command(ctx, "/resume")
}

func (c *Client) Reset(ctx context.Context) (*engine.WorldState, error) {
	return c.command(ctx, "/reset")
}

// ErrStepLimit is returned when the tour is not finished within the step limit
var ErrStepLimit = errors.New("step limit reached")

// Drive runs the pilot until the exploration completes
func Drive(ctx context.Context, c *Client, pilot *Pilot, state *engine.WorldState, maxSteps int, logger zerolog.Logger) (*engine.WorldState, int, error) {
	steps := 0
	for !state.Progress.Completed {
		if err := ctx.Err(); err != nil {
			return state, steps, err
		}
		if steps >= maxSteps {
			return state, steps, ErrStepLimit
		}

		// A discovered zone pauses the world behind its overlay
		if state.Paused {
			var err error
			if state.OpenOverlay != "" {
				logger.Info().Str("overlay", state.OpenOverlay).Msg("closing overlay")
				state, err = c.CloseOverlay(ctx, state.OpenOverlay)
			} else {
				state, err = c.Resume(ctx)
			}
			if err != nil {
				return nil, steps, err
			}
			continue
		}

		step, ok := pilot.Next(state)
		if !ok {
			return state, steps, fmt.Errorf("no target left but exploration is not complete")
		}

		result, err := c.Advance(ctx, step)
		if err != nil {
			return nil, steps, err
		}
		steps++
		state = result.State

		for _, ev := range result.Events {
			if ev.Type == "zone_enter" && ev.FirstVisit {
				logger.Info().Str("zone", ev.ZoneID).Int("xp", ev.XPAwarded).Msg("zone discovered")
			}
		}
		logger.Debug().
			Strs("keys", step.Keys).
			Int("frames", result.FramesRun).
			Str("target", step.Target).
			Float64("x", state.Pose.Position.X).
			Float64("z", state.Pose.Position.Z).
			Msg("advanced")
	}
	return state, steps, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "autopilot",
		Usage: "Discover every zone of a Grid Explorer session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL"},
			&cli.StringFlag{Name: "config", Usage: "World configuration id (default: server default)"},
			&cli.StringFlag{Name: "continue", Usage: "Resume playing an existing session by ID"},
			&cli.StringFlag{Name: "session-file", Value: ".session", Usage: "File remembering the last session ID"},
			&cli.IntFlag{Name: "max-steps", Value: 2000, Usage: "Maximum advance requests per attempt"},
			&cli.IntFlag{Name: "max-attempts", Value: 3, Usage: "Maximum attempts before giving up"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := "info"
	if cmd.Bool("v") {
		level = "debug"
	}
	logger := logging.New(level, true)

	client := NewClient(cmd.String("url"))
	logger.Info().Str("url", client.baseURL).Msg("connecting to game server")

	info, err := openSession(ctx, client, cmd.String("continue"), cmd.String("session-file"), cmd.String("config"), logger)
	if err != nil {
		return err
	}

	cfg := client.LoadConfig(ctx, info.ConfigName)

	attempts := cmd.Int("max-attempts")
	for attempt := 1; attempt <= attempts; attempt++ {
		// Start every attempt from a fresh world
		state, err := client.Reset(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset: %w", err)
		}

		pilot := NewPilot(cfg, state, logger)
		logger.Info().Int("attempt", attempt).Int("zones", len(pilot.Order())).Msg("starting attempt")

		final, steps, err := Drive(ctx, client, pilot, state, cmd.Int("max-steps"), logger)
		if err == nil {
			logger.Info().
				Str("session", client.sessionID).
				Int("steps", steps).
				Int("xp", final.Progress.XP).
				Int("level", final.Progress.Level).
				Msg("exploration complete")
			return nil
		}
		if !errors.Is(err, ErrStepLimit) {
			return err
		}
		logger.Warn().Int("attempt", attempt).Int("steps", steps).Msg("attempt ran out of steps")
	}

	return fmt.Errorf("failed to complete after %d attempts (session %s)", attempts, client.sessionID)
}

// openSession resumes the given or remembered session, or creates a new one
func openSession(ctx context.Context, client *Client, resume, sessionFile, configID string, logger zerolog.Logger) (*service.SessionInfo, error) {
	if resume == "" && sessionFile != "" {
		if data, err := os.ReadFile(sessionFile); err == nil {
			resume = string(bytes.TrimSpace(data))
		}
	}

	if resume != "" {
		client.sessionID = resume
		info, err := client.GetSession(ctx)
		if err == nil {
			logger.Info().Str("session", info.ID).Msg("session resumed")
			return info, nil
		}
		logger.Warn().Err(err).Msg("failed to resume session (may be expired), creating a new one")
	}

	info, err := client.CreateSession(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	logger.Info().Str("session", info.ID).Str("config", info.ConfigName).Msg("session created")

	if sessionFile != "" {
		if err := os.WriteFile(sessionFile, []byte(info.ID), 0644); err != nil {
			logger.Warn().Err(err).Msg("failed to save session ID")
		}
	}
	return info, nil
}
