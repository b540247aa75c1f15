package service

import (
	"time"

	"github.com/wricardo/grid-explorer/game/engine"
)

// SessionInfo provides information about a session and its world
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	Realtime       bool               `json:"realtime"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	State          *engine.WorldState `json:"state"`
}

// SessionOptions tune CreateSession
type SessionOptions struct {
	// ID is generated when empty
	ID string `json:"id,omitempty"`

	// Realtime starts the world's frame loop against the wall clock. Worlds
	// that are not realtime only move through Advance.
	Realtime bool `json:"realtime,omitempty"`
}

// AdvanceRequest holds the input to hold while advancing frames
type AdvanceRequest struct {
	Frames int                  `json:"frames"`
	Input  *engine.InputSnapshot `json:"input,omitempty"`

	// Keys is an alternative to Input, naming key codes or buttons
	Keys []string `json:"keys,omitempty"`
}

// Stop reason codes reported by Advance
const (
	StopPaused    = "paused"
	StopCompleted = "completed"
	StopTruncated = "truncated"
)

// AdvanceResult contains the outcome of a fixed-step advance
type AdvanceResult struct {
	FramesRequested int                `json:"frames_requested"`
	FramesRun       int                `json:"frames_run"`
	StopReason      string             `json:"stop_reason,omitempty"`
	Message         string             `json:"message,omitempty"`
	Events          []GameEvent        `json:"events"`
	XPDelta         int                `json:"xp_delta"`
	StartPos        engine.Point       `json:"start_pos"`
	EndPos          engine.Point       `json:"end_pos"`
	State           *engine.WorldState `json:"state"`
}

// GameEvent is a zone event in transport form
type GameEvent struct {
	Type       string       `json:"type"` // "zone_enter" or "zone_exit"
	ZoneID     string       `json:"zone_id"`
	ZoneName   string       `json:"zone_name"`
	OverlayID  string       `json:"overlay_id,omitempty"`
	FirstVisit bool         `json:"first_visit,omitempty"`
	XPAwarded  int          `json:"xp_awarded,omitempty"`
	Position   engine.Point `json:"position"`
	Timestamp  time.Time    `json:"timestamp"`
}

// ConfigInfo provides information about a world configuration
type ConfigInfo struct {
	Filename      string  `json:"filename"`
	ConfigID      string  `json:"config_id"` // The identifier to use for session creation
	Name          string  `json:"name"`      // Display name
	Description   string  `json:"description"`
	BoundaryLimit float64 `json:"boundary_limit"`
	ZoneCount     int     `json:"zone_count"`
	TotalZones    int     `json:"total_zones"`
	XPPerZone     int     `json:"xp_per_zone"`
}
