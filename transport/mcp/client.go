package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/grid-explorer/game/engine"
	"github.com/wricardo/grid-explorer/game/service"
)

// DefaultDriveFrames is used by the drive tool when frames is omitted
const DefaultDriveFrames = 60

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Grid Explorer",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Grid Explorer - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Ride the bike across the grid and discover every zone. Entering a zone for
the first time awards XP and opens its overlay, which pauses the world until
you close it.

AVAILABLE TOOLS:
- create_session: Create a new session (optionally choosing a config)
- list_sessions / get_session: Inspect sessions
- world_state: Position, heading, XP, level and zone status
- drive: Hold keys for a number of frames (e.g. ["KeyW"] for 60 frames)
- close_overlay: Close the open overlay and resume the world
- reset_world: Start the session over
- list_zones: Zone positions, rewards and status
- list_configs: Available world configurations
- game_instructions: Controls and rules

NOTE: The 'intent' parameter on drive serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to use (optional, see list_configs)",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to use (optional, generated when empty)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Simulation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "world_state",
		Description: "Get the current world state: pose, progress, zones and open overlay",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleWorldState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "drive",
		Description: "Hold keys for a number of frames. Stops early when a zone opens its overlay or every zone is discovered.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"keys": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "string",
					},
					"description": "Keys or buttons to hold: KeyW/forward, KeyS/backward, KeyA/left, KeyD/right, ShiftLeft/sprint. Empty releases everything.",
				},
				"frames": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Frames to run at 60 per second (default %d, max %d)", DefaultDriveFrames, engine.MaxAdvanceFrames),
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this drive (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleDrive)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "close_overlay",
		Description: "Close the open zone overlay and resume the world",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"overlay_id": map[string]interface{}{
					"type":        "string",
					"description": "Overlay to close (optional, defaults to the open one)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleCloseOverlay)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_world",
		Description: "Reset XP, visited zones and the bike position",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_zones",
		Description: "List zones with position, reward, status and distance from the bike",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleListZones)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available world configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get controls and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall makes an HTTP request to the REST API
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func sessionPath(id string, suffix string) string {
	return "/api/sessions/" + url.PathEscape(id) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	configID, _ := args["config_id"].(string)
	sessionID, _ := args["session_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}
	if sessionID != "" {
		body["session_id"] = sessionID
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s",
		info.ID, info.ConfigName, formatWorldState(info.State))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (Config: %s, Created: %s", s.ID, s.ConfigName, s.CreatedAt.Format("15:04:05"))
		if s.State != nil {
			fmt.Fprintf(&b, ", XP: %d/%d", s.State.Progress.XP, s.State.Progress.MaxXP)
		}
		b.WriteString(")\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleWorldState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var state engine.WorldState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatWorldState(&state)), nil
}

func (c *Client) handleDrive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	intent, _ := args["intent"].(string)
	_ = intent // not sent to the server

	frames := DefaultDriveFrames
	if f, ok := args["frames"].(float64); ok {
		frames = int(f)
	}

	keys := []string{}
	if raw, ok := args["keys"].([]interface{}); ok {
		for _, k := range raw {
			if key, ok := k.(string); ok {
				keys = append(keys, key)
			}
		}
	}

	body := map[string]interface{}{
		"frames": frames,
		"keys":   keys,
	}
	if len(keys) == 0 {
		body["input"] = engine.InputSnapshot{}
	}

	var result service.AdvanceResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/advance"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatAdvanceResult(sessionID, keys, &result)), nil
}

func (c *Client) handleCloseOverlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	overlayID, _ := args["overlay_id"].(string)

	if overlayID == "" {
		var state engine.WorldState
		if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if state.OpenOverlay == "" {
			return mcp.NewToolResultError("no overlay is open"), nil
		}
		overlayID = state.OpenOverlay
	}

	var response struct {
		Message string             `json:"message"`
		State   *engine.WorldState `json:"state"`
	}
	path := sessionPath(sessionID, "/overlays/"+url.PathEscape(overlayID)+"/close")
	if err := c.apiCall(ctx, "POST", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s\n\n%s", response.Message, overlayID, formatWorldState(response.State))), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var response struct {
		Message string             `json:"message"`
		State   *engine.WorldState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatWorldState(response.State))), nil
}

func (c *Client) handleListZones(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var state engine.WorldState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatZones(state.Pose.Position, state.Zones)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "• %s (%s)\n  %s\n  Boundary: ±%.0f, Zones: %d, XP per zone: %d\n\n",
			cfg.ConfigID, cfg.Name, cfg.Description, cfg.BoundaryLimit, cfg.ZoneCount, cfg.XPPerZone)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `Grid Explorer - Instructions

OBJECTIVE:
Discover every zone on the grid. Each first visit awards the zone's XP; every
25 XP is a level. When all zones are discovered the exploration is complete.

WORLD:
• The grid is a flat plane; x grows to the east and z grows to the south.
• The bike starts at the config's start position (usually the origin) facing
  north, toward negative z.
• The bike cannot leave the square boundary (±boundary_limit on x and z).

CONTROLS (drive tool keys):
• KeyW / ArrowUp / forward   - accelerate forward
• KeyS / ArrowDown / backward - reverse
• KeyA / ArrowLeft / left     - turn left
• KeyD / ArrowRight / right   - turn right
• ShiftLeft / sprint          - higher top speed
• KeyC / center               - return to the start position

TIMING:
• The world runs at 60 frames per second; drive runs fixed frames.
• Speeds are units per frame: at the default 0.5, 60 frames covers about
  30 units once the bike is up to speed.
• Turning rotates about 0.05 radians per frame, so a quarter turn takes
  roughly 31 frames. Heading 0 faces north; left turns increase it.

ZONES:
• A zone triggers when the bike comes within trigger_distance of its center.
• A triggered zone awards XP once and opens its overlay. The world stays
  paused until the overlay is closed (close_overlay).
• A zone never triggers again until reset_world.

STRATEGY:
1. list_zones shows every zone with its distance and bearing from the bike.
2. Turn toward the target with short drives, then drive forward.
3. After each discovery close the overlay before driving on.`

// Formatting helpers

func formatSessionInfo(info *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", info.ID)
	fmt.Fprintf(&b, "Config: %s\n", info.ConfigName)
	fmt.Fprintf(&b, "Realtime: %t\n", info.Realtime)
	fmt.Fprintf(&b, "Created: %s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Last accessed: %s\n\n", info.LastAccessedAt.Format(time.RFC3339))
	b.WriteString(formatWorldState(info.State))
	return b.String()
}

func formatWorldState(state *engine.WorldState) string {
	if state == nil {
		return "No state available"
	}

	var b strings.Builder
	p := state.Pose
	fmt.Fprintf(&b, "Position: (%.1f, %.1f)  Heading: %.2f rad (%s)\n",
		p.Position.X, p.Position.Z, p.Heading, compass(p.Heading))
	fmt.Fprintf(&b, "Speed: %.2f units/frame", speed(p.Velocity))
	if p.Sprinting {
		b.WriteString(" (sprinting)")
	}
	b.WriteString("\n")

	pr := state.Progress
	fmt.Fprintf(&b, "XP: %d/%d  Level: %d  Zones: %d/%d (%d%%)\n",
		pr.XP, pr.MaxXP, pr.Level, len(pr.VisitedZoneIDs), pr.TotalZones, pr.CompletionPercent)
	if pr.CurrentZone != "" {
		fmt.Fprintf(&b, "Current zone: %s\n", pr.CurrentZone)
	}

	switch {
	case pr.Completed:
		b.WriteString("Status: EXPLORATION COMPLETE\n")
	case state.OpenOverlay != "":
		fmt.Fprintf(&b, "Status: PAUSED, overlay %s is open (use close_overlay)\n", state.OpenOverlay)
	case state.Paused:
		b.WriteString("Status: PAUSED\n")
	default:
		b.WriteString("Status: exploring\n")
	}
	return b.String()
}

func formatAdvanceResult(sessionID string, keys []string, r *service.AdvanceResult) string {
	var b strings.Builder
	held := "nothing"
	if len(keys) > 0 {
		held = strings.Join(keys, "+")
	}
	fmt.Fprintf(&b, "Session %s: held %s for %d/%d frames\n", sessionID, held, r.FramesRun, r.FramesRequested)
	fmt.Fprintf(&b, "Moved (%.1f, %.1f) -> (%.1f, %.1f)\n", r.StartPos.X, r.StartPos.Z, r.EndPos.X, r.EndPos.Z)

	for _, ev := range r.Events {
		switch ev.Type {
		case "zone_enter":
			line := fmt.Sprintf("• Entered %s", ev.ZoneName)
			if ev.FirstVisit {
				line += fmt.Sprintf(" (discovered, +%d XP)", ev.XPAwarded)
			}
			b.WriteString(line + "\n")
		case "zone_exit":
			fmt.Fprintf(&b, "• Left %s\n", ev.ZoneName)
		}
	}
	if r.XPDelta > 0 {
		fmt.Fprintf(&b, "XP gained: %d\n", r.XPDelta)
	}
	if r.StopReason != "" {
		fmt.Fprintf(&b, "Stopped: %s", r.StopReason)
		if r.Message != "" {
			fmt.Fprintf(&b, " (%s)", r.Message)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(formatWorldState(r.State))
	return b.String()
}

func formatZones(from engine.Point, zones []engine.ZoneView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Zones (%d) from (%.1f, %.1f):\n\n", len(zones), from.X, from.Z)
	for _, z := range zones {
		dx, dz := z.Position.X-from.X, z.Position.Z-from.Z
		fmt.Fprintf(&b, "- %s [%s] at (%.0f, %.0f), %d XP, %s", z.Name, z.ID, z.Position.X, z.Position.Z, z.XPReward, z.Status)
		if z.Status != "triggered" {
			h := bearing(dx, dz)
			fmt.Fprintf(&b, ", %.1f units %s (heading %.2f)", math.Hypot(dx, dz), compass(h), h)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// compass names the direction a heading faces. Heading 0 faces -z (north)
// and grows counterclockwise seen from above.
func compass(heading float64) string {
	cw := math.Mod(-heading, 2*math.Pi)
	if cw < 0 {
		cw += 2 * math.Pi
	}
	i := int(math.Round(cw/(math.Pi/4))) % len(compassPoints)
	return compassPoints[i]
}

// bearing is the heading that points along (dx, dz)
func bearing(dx, dz float64) float64 {
	return math.Atan2(-dx, -dz)
}

func speed(v engine.Point) float64 {
	return math.Hypot(v.X, v.Z)
}
