package engine

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// Renderer is the scene capability the core drives. Scene graph management and
// drawing belong to the implementation.
type Renderer interface {
	AddToWorld(obj any)
	RemoveFromWorld(obj any)
	Render(scene, camera any) error
	FollowTarget(position mgl64.Vec3, heading float64)
}

// UI is the presentation capability the core notifies
type UI interface {
	NotifyZoneLabel(name, subtitle string)
	NotifyProgress(xp, maxXP int)
	ShowToast(title, message string, kind ToastKind, duration time.Duration)
	OpenOverlay(id string)
	CloseOverlay(id string)
}

// InputSource produces the logical button state for the next frame
type InputSource interface {
	Snapshot() InputSnapshot
}

// NopRenderer discards everything. Useful for headless worlds.
type NopRenderer struct{}

func (NopRenderer) AddToWorld(any)                  {}
func (NopRenderer) RemoveFromWorld(any)             {}
func (NopRenderer) Render(any, any) error           { return nil }
func (NopRenderer) FollowTarget(mgl64.Vec3, float64) {}

// LogUI writes every notification to a logger
type LogUI struct {
	Logger zerolog.Logger
}

func (u LogUI) NotifyZoneLabel(name, subtitle string) {
	u.Logger.Debug().Str("name", name).Str("subtitle", subtitle).Msg("zone label")
}

func (u LogUI) NotifyProgress(xp, maxXP int) {
	u.Logger.Info().Int("xp", xp).Int("max_xp", maxXP).Msg("progress")
}

func (u LogUI) ShowToast(title, message string, kind ToastKind, duration time.Duration) {
	u.Logger.Info().Str("kind", string(kind)).Dur("duration", duration).Str("message", message).Msg(title)
}

func (u LogUI) OpenOverlay(id string) {
	u.Logger.Info().Str("overlay", id).Msg("overlay opened")
}

func (u LogUI) CloseOverlay(id string) {
	u.Logger.Info().Str("overlay", id).Msg("overlay closed")
}
