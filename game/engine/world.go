package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingDependency is wrapped when NewWorld lacks a required collaborator
	ErrMissingDependency = errors.New("missing required dependency")

	// ErrWorldClosed is returned by operations on a closed world
	ErrWorldClosed = errors.New("world is closed")

	// ErrNoOverlayOpen is returned by CloseOverlay when nothing is open
	ErrNoOverlayOpen = errors.New("no overlay is open")

	// ErrInputNotSettable is returned by SetInput when the input source is
	// driven by something else
	ErrInputNotSettable = errors.New("input source does not accept snapshots")
)

const recentEventLimit = 32

// Dependencies are the collaborators a World is wired to. Renderer, UI and
// Input are required.
type Dependencies struct {
	Renderer Renderer
	UI       UI
	Input    InputSource

	// Scene and Camera are handed to Renderer.Render untouched
	Scene  any
	Camera any

	Clock  clock.Clock
	Logger *zerolog.Logger
}

// World is the composition root of one session's simulation
type World struct {
	mu sync.Mutex

	cfg      *GameConfig
	logger   zerolog.Logger
	clock    clock.Clock
	renderer Renderer
	ui       UI
	input    InputSource

	pause     *PauseFlag
	rules     *Rules
	vehicle   *Vehicle
	registry  *ZoneRegistry
	ledger    *Ledger
	triggers  *Triggers
	scheduler *Scheduler

	lastInput InputSnapshot
	overlay   string
	recent    []ZoneEvent
	eventSeq  uint64
	welcomed  bool
	closed    bool
}

// overlayTracker records which overlay the triggers opened. It is only called
// from inside a frame, with the world lock held.
type overlayTracker struct {
	UI
	w *World
}

func (t overlayTracker) OpenOverlay(id string) {
	t.w.overlay = id
	t.UI.OpenOverlay(id)
}

// NewWorld validates the config and dependencies and wires every component.
// The returned world is stopped.
func NewWorld(cfg *GameConfig, deps Dependencies) (*World, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config", ErrMissingDependency)
	}
	if err := ValidateGameConfig(cfg); err != nil {
		return nil, err
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("%w: renderer", ErrMissingDependency)
	}
	if deps.UI == nil {
		return nil, fmt.Errorf("%w: ui", ErrMissingDependency)
	}
	if deps.Input == nil {
		return nil, fmt.Errorf("%w: input source", ErrMissingDependency)
	}

	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	logger = logger.With().Str("world", cfg.Name).Logger()

	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}

	registry := NewZoneRegistry(cfg.Zones, logger)
	if registry.Len() == 0 {
		return nil, fmt.Errorf("%w: zone registry has no valid zones", ErrMissingDependency)
	}

	totalZones := cfg.Game.TotalZones
	if totalZones == 0 {
		totalZones = registry.Len()
	} else if totalZones > registry.Len() {
		logger.Warn().
			Int("total_zones", totalZones).
			Int("valid_zones", registry.Len()).
			Msg("total_zones exceeds valid zones, completion is unreachable")
	}

	metrics, err := newEngineMetrics()
	if err != nil {
		return nil, err
	}

	w := &World{
		cfg:      cfg,
		logger:   logger,
		clock:    clk,
		renderer: deps.Renderer,
		ui:       deps.UI,
		input:    deps.Input,
		pause:    &PauseFlag{},
		registry: registry,
	}

	w.ledger = NewLedger(LedgerConfig{
		TotalZones:    totalZones,
		XPPerZone:     cfg.Game.XPPerZone,
		Disabled:      cfg.Game.DisableXP,
		ToastDuration: cfg.UI.ToastDuration(),
		Messages:      cfg.Messages,
	}, w.ui, clk, logger)

	w.rules = NewRules(cfg, w.pause, w.ledger, logger)
	w.vehicle = NewVehicle(cfg, w.rules, w.renderer, logger)

	w.scheduler = NewScheduler(w.renderer, deps.Scene, deps.Camera,
		WithClock(clk),
		WithLogger(logger),
		WithTargetFPS(cfg.Game.TargetFPS),
		WithPauseFlag(w.pause),
		WithFrameLock(&w.mu),
		withMetrics(metrics),
	)

	w.triggers = NewTriggers(TriggerConfig{
		Radius:        cfg.ZoneSettings.TriggerDistance,
		Cooldown:      cfg.ZoneSettings.Cooldown(),
		ToastDuration: cfg.UI.ToastDuration(),
	}, registry, w.rules, w.ledger, overlayTracker{UI: w.ui, w: w}, w.scheduler, clk, logger)
	w.triggers.metrics = metrics

	w.scheduler.OnUpdate("vehicle", w.updateVehicle)
	w.scheduler.OnUpdate("triggers", w.updateTriggers)
	w.scheduler.OnRender("hud", w.renderHUD)

	w.renderer.AddToWorld(w.vehicle)
	for _, z := range registry.All() {
		w.renderer.AddToWorld(z)
	}

	logger.Info().
		Int("zones", registry.Len()).
		Int("total_zones", totalZones).
		Float64("boundary", cfg.World.BoundaryLimit).
		Msg("world created")

	return w, nil
}

func (w *World) updateVehicle(dt, _ float64) error {
	w.vehicle.Update(w.input.Snapshot(), dt)
	return nil
}

func (w *World) updateTriggers(_, _ float64) error {
	events := w.triggers.Check(w.vehicle.Position())
	if len(events) == 0 {
		return nil
	}
	w.recent = append(w.recent, events...)
	w.eventSeq += uint64(len(events))
	if n := len(w.recent); n > recentEventLimit {
		w.recent = append([]ZoneEvent(nil), w.recent[n-recentEventLimit:]...)
	}
	return nil
}

// renderHUD runs every frame, paused or not, so the pause and center buttons
// stay live. Both act on the rising edge.
func (w *World) renderHUD() error {
	in := w.input.Snapshot()
	if in.Pause && !w.lastInput.Pause {
		if w.pause.Paused() {
			w.resumeLocked()
		} else {
			w.scheduler.Pause()
		}
	}
	if in.Center && !w.lastInput.Center {
		w.vehicle.ResetPosition()
	}
	w.lastInput = in
	return nil
}

// Start begins the frame loop. The welcome toast is shown on the first start.
func (w *World) Start() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWorldClosed
	}
	if !w.welcomed {
		w.welcomed = true
		w.greetLocked()
	}
	w.mu.Unlock()

	w.scheduler.Start()
	return nil
}

func (w *World) greetLocked() {
	w.ui.NotifyProgress(w.ledger.XP(), w.ledger.MaxXP())
	w.ui.NotifyZoneLabel(ExplorationLabel, ExplorationSubtitle)
	if w.cfg.Messages.WelcomeTitle != "" {
		w.ui.ShowToast(w.cfg.Messages.WelcomeTitle, w.cfg.Messages.WelcomeMessage, ToastInfo, WelcomeToastDuration)
	}
}

// Stop halts the frame loop; the world can be started again
func (w *World) Stop() {
	w.scheduler.Stop()
}

// Close stops the loop, cancels cooldown timers and removes the world's
// objects from the renderer. Close is idempotent.
func (w *World) Close() {
	w.scheduler.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true

	w.triggers.Close()
	w.scheduler.Dispose()
	w.renderer.RemoveFromWorld(w.vehicle)
	for _, z := range w.registry.All() {
		w.renderer.RemoveFromWorld(z)
	}
	// collaborators with their own timers or connections are closed too
	if c, ok := w.ui.(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := w.renderer.(interface{ Close() }); ok {
		c.Close()
	}
	w.logger.Info().Msg("world closed")
}

// Step runs one frame timed by the clock
func (w *World) Step() error {
	if w.isClosed() {
		return ErrWorldClosed
	}
	w.scheduler.Step()
	return nil
}

// Advance runs up to frames fixed-delta frames at the target rate, stopping
// early once the world pauses (e.g. a zone opened its overlay). It returns the
// number of frames run; a world that is already paused runs none.
func (w *World) Advance(frames int) (int, error) {
	if w.isClosed() {
		return 0, ErrWorldClosed
	}
	if frames > MaxAdvanceFrames {
		frames = MaxAdvanceFrames
	}

	dt := time.Second / time.Duration(w.targetFPS())
	n := 0
	for n < frames && !w.pause.Paused() {
		w.scheduler.StepFixed(dt)
		n++
	}
	return n, nil
}

func (w *World) targetFPS() int {
	if w.cfg.Game.TargetFPS > 0 {
		return w.cfg.Game.TargetFPS
	}
	return DefaultTargetFPS
}

func (w *World) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// SetInput replaces the held buttons when the input source is settable
func (w *World) SetInput(in InputSnapshot) error {
	s, ok := w.input.(interface{ Set(InputSnapshot) })
	if !ok {
		return ErrInputNotSettable
	}
	s.Set(in)
	return nil
}

// Pause freezes the update phase
func (w *World) Pause() {
	w.scheduler.Pause()
}

// Resume closes any open overlay and unfreezes the update phase
func (w *World) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resumeLocked()
}

func (w *World) resumeLocked() {
	if w.overlay != "" {
		w.ui.CloseOverlay(w.overlay)
		w.overlay = ""
	}
	w.scheduler.Resume()
}

// TogglePause flips pause and returns the new state
func (w *World) TogglePause() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pause.Paused() {
		w.resumeLocked()
		return false
	}
	w.scheduler.Pause()
	return true
}

// Paused reports whether the world is paused
func (w *World) Paused() bool {
	return w.pause.Paused()
}

// CloseOverlay closes the overlay id, or the open one when id is empty, and
// resumes the simulation
func (w *World) CloseOverlay(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id == "" {
		id = w.overlay
	}
	if id == "" {
		return ErrNoOverlayOpen
	}

	w.ui.CloseOverlay(id)
	if w.overlay == id {
		w.overlay = ""
	}
	w.scheduler.Resume()
	return nil
}

// OpenOverlayID returns the overlay a zone opened, if it is still open
func (w *World) OpenOverlayID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.overlay
}

// Reset starts a new session: progression is cleared, zones are re-armed,
// the vehicle returns to its start pose and the world resumes.
func (w *World) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWorldClosed
	}

	w.ledger.Reset()
	w.triggers.Rearm()
	w.vehicle.ResetPosition()
	w.rules.Reset()
	w.scheduler.ResetClock()
	w.recent = nil
	w.lastInput = InputSnapshot{}
	w.resumeLocked()
	w.ui.NotifyZoneLabel(ExplorationLabel, ExplorationSubtitle)

	w.logger.Info().Msg("world reset")
	return nil
}

// RestoreProgress loads a saved ledger snapshot. Visited zones are marked
// triggered so they do not award again.
func (w *World) RestoreProgress(s ProgressSnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWorldClosed
	}

	for _, id := range s.VisitedZoneIDs {
		if _, ok := w.registry.Get(id); !ok {
			return fmt.Errorf("%w: unknown zone %q", ErrInvalidSnapshot, id)
		}
	}
	if err := w.ledger.Restore(s); err != nil {
		return err
	}
	w.triggers.Restore(s.VisitedZoneIDs)
	return nil
}

// PlaceVehicle moves the vehicle to a saved pose
func (w *World) PlaceVehicle(pos mgl64.Vec3, heading float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.vehicle.Place(pos, heading)
}

// SetFreeRoam toggles the boundary override
func (w *World) SetFreeRoam(on bool) {
	w.rules.SetFreeRoam(on)
}

// Progress returns the ledger snapshot
func (w *World) Progress() ProgressSnapshot {
	return w.ledger.Snapshot()
}

// Pose returns the vehicle pose
func (w *World) Pose() VehiclePose {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vehicle.Pose()
}

// RecentEvents returns the most recent zone events, oldest first
func (w *World) RecentEvents() []ZoneEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ZoneEvent(nil), w.recent...)
}

// EventSeq returns the number of zone events emitted since the world was
// created
func (w *World) EventSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.eventSeq
}

// EventsSince returns the retained events emitted after seq, oldest first,
// and the current sequence number. Events older than the retention window are
// dropped.
func (w *World) EventsSince(seq uint64) ([]ZoneEvent, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq >= w.eventSeq {
		return nil, w.eventSeq
	}
	n := w.eventSeq - seq
	if n > uint64(len(w.recent)) {
		n = uint64(len(w.recent))
	}
	return append([]ZoneEvent(nil), w.recent[uint64(len(w.recent))-n:]...), w.eventSeq
}

// Zones reports every zone with its runtime state
func (w *World) Zones() []ZoneView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.zonesLocked()
}

func (w *World) zonesLocked() []ZoneView {
	zones := w.registry.All()
	out := make([]ZoneView, 0, len(zones))
	for _, z := range zones {
		st, _ := w.triggers.State(z.ID)
		out = append(out, ZoneView{
			ID:         z.ID,
			Name:       z.Name,
			Subtitle:   z.Subtitle,
			Position:   PointFrom(z.Position),
			OverlayID:  z.OverlayID,
			XPReward:   z.XPReward,
			Status:     st.Status.String(),
			OnCooldown: w.triggers.OnCooldown(z.ID),
			Active:     w.triggers.IsZoneActive(z.ID),
		})
	}
	return out
}

// State returns a complete view of the world
func (w *World) State() WorldState {
	w.mu.Lock()
	defer w.mu.Unlock()

	info := w.scheduler.Info()
	return WorldState{
		ConfigName:  w.cfg.Name,
		Pose:        w.vehicle.Pose().View(),
		Progress:    w.ledger.View(),
		Zones:       w.zonesLocked(),
		Paused:      info.Paused,
		Running:     info.Running,
		FreeRoam:    w.rules.FreeRoam(),
		Frame:       info.Frame,
		FPS:         info.FPS,
		Elapsed:     info.Elapsed,
		OpenOverlay: w.overlay,
	}
}

// Config returns the world configuration
func (w *World) Config() *GameConfig { return w.cfg }

// Rules returns the permission gate
func (w *World) Rules() *Rules { return w.rules }

// Scheduler returns the frame driver
func (w *World) Scheduler() *Scheduler { return w.scheduler }

// Ledger returns the progression ledger
func (w *World) Ledger() *Ledger { return w.ledger }

// Triggers returns the zone state machine
func (w *World) Triggers() *Triggers { return w.triggers }

// Registry returns the zone registry
func (w *World) Registry() *ZoneRegistry { return w.registry }
