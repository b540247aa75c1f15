package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// ZoneStatus is the per-session state of a zone. ZoneTriggered is terminal.
type ZoneStatus int

const (
	ZoneIdle ZoneStatus = iota
	ZoneTriggered
)

func (s ZoneStatus) String() string {
	switch s {
	case ZoneIdle:
		return "idle"
	case ZoneTriggered:
		return "triggered"
	default:
		return fmt.Sprintf("ZoneStatus(%d)", int(s))
	}
}

// ZoneRuntimeState is the mutable state of one zone. A zero CooldownExpiry
// means no cooldown is running.
type ZoneRuntimeState struct {
	Status         ZoneStatus
	CooldownExpiry time.Time
}

// ZoneEventType distinguishes enter from exit
type ZoneEventType string

const (
	ZoneEnter ZoneEventType = "enter"
	ZoneExit  ZoneEventType = "exit"
)

// ZoneEvent reports a transition produced by Check
type ZoneEvent struct {
	Type       ZoneEventType  `json:"type"`
	Zone       ZoneDescriptor `json:"zone"`
	FirstVisit bool           `json:"first_visit"`
	XPAwarded  int            `json:"xp_awarded"`
	At         time.Time      `json:"at"`
}

// ActiveTrigger is a zone entered during the current dwell
type ActiveTrigger struct {
	Zone      ZoneDescriptor `json:"zone"`
	EnteredAt time.Time      `json:"entered_at"`
}

// Progression is the part of the ledger the triggers feed
type Progression interface {
	MarkVisited(id string) bool
	AddExperience(amount int) (int, error)
	SetCurrentZone(id string)
}

// PauseRequester is asked to pause once a zone opens its overlay
type PauseRequester interface {
	Pause()
}

// TriggerConfig holds the trigger tuning taken from the world config
type TriggerConfig struct {
	Radius        float64
	Cooldown      time.Duration
	ToastDuration time.Duration
}

// Triggers is the zone state machine. It owns the per-zone status, the
// cooldown table and the active trigger entries.
type Triggers struct {
	cfg      TriggerConfig
	registry *ZoneRegistry
	rules    *Rules
	progress Progression
	ui       UI
	pauser   PauseRequester
	clock    clock.Clock
	logger   zerolog.Logger
	metrics  *engineMetrics

	mu      sync.Mutex
	states  map[string]*ZoneRuntimeState
	timers  map[string]*clock.Timer
	active  map[string]ActiveTrigger
	nearest string
	closed  bool
}

// NewTriggers creates the state machine with every zone idle
func NewTriggers(cfg TriggerConfig, registry *ZoneRegistry, rules *Rules, progress Progression, ui UI, pauser PauseRequester, clk clock.Clock, logger zerolog.Logger) *Triggers {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = DefaultToastDuration
	}
	t := &Triggers{
		cfg:      cfg,
		registry: registry,
		rules:    rules,
		progress: progress,
		ui:       ui,
		pauser:   pauser,
		clock:    clk,
		logger:   logger.With().Str("component", "triggers").Logger(),
		states:   make(map[string]*ZoneRuntimeState, registry.Len()),
		timers:   make(map[string]*clock.Timer),
		active:   make(map[string]ActiveTrigger),
	}
	for _, z := range registry.All() {
		t.states[z.ID] = &ZoneRuntimeState{}
	}
	return t
}

// Check evaluates every zone against pos and returns the enter and exit
// events it produced, in that order. Side effects run in a fixed order:
// state transitions, then progression, then UI, then the pause request.
func (t *Triggers) Check(pos mgl64.Vec3) []ZoneEvent {
	if !t.rules.CanInteract() {
		return nil
	}

	now := t.clock.Now()
	events, nearest, exited, ok := t.evaluate(pos, now)
	if !ok {
		return nil
	}

	// progression
	for i := range events {
		ev := &events[i]
		ev.FirstVisit = t.progress.MarkVisited(ev.Zone.ID)
		if ev.FirstVisit && ev.Zone.XPReward > 0 {
			if _, err := t.progress.AddExperience(ev.Zone.XPReward); err != nil {
				t.logger.Error().Err(err).Str("zone_id", ev.Zone.ID).Msg("failed to award experience")
			} else {
				ev.XPAwarded = ev.Zone.XPReward
			}
		}
	}
	if nearest != nil {
		t.progress.SetCurrentZone(nearest.ID)
	} else {
		t.progress.SetCurrentZone("")
	}

	// ui
	pause := false
	for _, ev := range events {
		if ev.XPAwarded > 0 {
			t.ui.ShowToast(ev.Zone.Name+" DISCOVERED!", fmt.Sprintf("+%d XP", ev.XPAwarded), ToastSuccess, t.cfg.ToastDuration)
		}
		if ev.Zone.OverlayID == "" {
			t.logger.Warn().Str("zone_id", ev.Zone.ID).Msg("zone has no overlay")
			continue
		}
		t.ui.OpenOverlay(ev.Zone.OverlayID)
		pause = true
	}
	if nearest != nil {
		t.ui.NotifyZoneLabel(nearest.Name, nearest.Subtitle)
	} else {
		t.ui.NotifyZoneLabel(ExplorationLabel, ExplorationSubtitle)
	}
	if exited != nil {
		t.logger.Info().Str("zone_id", exited.ID).Msg("zone exited")
		events = append(events, ZoneEvent{Type: ZoneExit, Zone: *exited, At: now})
	}

	if pause && t.pauser != nil {
		t.pauser.Pause()
	}
	return events
}

// evaluate applies state transitions under the lock and reports the enter
// events, the nearest in-range zone and the zone that stopped being nearest
// while it had an active entry.
func (t *Triggers) evaluate(pos mgl64.Vec3, now time.Time) ([]ZoneEvent, *ZoneDescriptor, *ZoneDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, nil, nil, false
	}

	var events []ZoneEvent
	for _, z := range t.registry.All() {
		if pos.Sub(z.Position).Len() >= t.cfg.Radius {
			continue
		}
		st := t.states[z.ID]
		if st.Status == ZoneTriggered || t.onCooldown(z.ID, now) {
			continue
		}

		st.Status = ZoneTriggered
		t.startCooldown(z.ID, now)
		t.active[z.ID] = ActiveTrigger{Zone: z, EnteredAt: now}
		t.metrics.zoneTriggered(z.ID)
		t.logger.Info().Str("zone_id", z.ID).Str("name", z.Name).Msg("zone triggered")

		events = append(events, ZoneEvent{Type: ZoneEnter, Zone: z, At: now})
	}

	var nearest, exited *ZoneDescriptor
	if z, _, ok := t.registry.Nearest(pos, t.cfg.Radius); ok {
		nearest = &z
	}

	if t.nearest != "" && (nearest == nil || nearest.ID != t.nearest) {
		if entry, ok := t.active[t.nearest]; ok {
			delete(t.active, t.nearest)
			zone := entry.Zone
			exited = &zone
		}
	}
	if nearest != nil {
		t.nearest = nearest.ID
	} else {
		t.nearest = ""
	}

	return events, nearest, exited, true
}

func (t *Triggers) onCooldown(id string, now time.Time) bool {
	st, ok := t.states[id]
	if !ok || st.CooldownExpiry.IsZero() {
		return false
	}
	return now.Before(st.CooldownExpiry)
}

// startCooldown must be called with t.mu held
func (t *Triggers) startCooldown(id string, now time.Time) {
	expiry := now.Add(t.cfg.Cooldown)
	t.states[id].CooldownExpiry = expiry

	if old, ok := t.timers[id]; ok {
		old.Stop()
	}
	t.timers[id] = t.clock.AfterFunc(t.cfg.Cooldown, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if st, ok := t.states[id]; ok && st.CooldownExpiry.Equal(expiry) {
			st.CooldownExpiry = time.Time{}
			delete(t.timers, id)
		}
	})
}

// OnCooldown reports whether the zone's re-entry cooldown is running
func (t *Triggers) OnCooldown(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onCooldown(id, t.clock.Now())
}

// State returns the runtime state of a zone
func (t *Triggers) State(id string) (ZoneRuntimeState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[id]
	if !ok {
		return ZoneRuntimeState{}, false
	}
	return *st, true
}

// ActiveTriggers returns the zones entered during the current dwell
func (t *Triggers) ActiveTriggers() []ActiveTrigger {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ActiveTrigger, 0, len(t.active))
	for _, z := range t.registry.All() {
		if a, ok := t.active[z.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// IsZoneActive reports whether id has an active entry
func (t *Triggers) IsZoneActive(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[id]
	return ok
}

// ClearAll drops active entries and cooldowns. Zone statuses are kept.
func (t *Triggers) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
	t.logger.Debug().Msg("triggers cleared")
}

func (t *Triggers) clearLocked() {
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	for _, st := range t.states {
		st.CooldownExpiry = time.Time{}
	}
	t.active = make(map[string]ActiveTrigger)
	t.nearest = ""
}

// Rearm starts a new session: every zone returns to idle and all cooldowns
// and active entries are dropped.
func (t *Triggers) Rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
	for _, st := range t.states {
		st.Status = ZoneIdle
	}
	t.logger.Info().Msg("zones re-armed")
}

// Restore marks the given zones triggered, e.g. after a saved session loads.
// Unknown ids are ignored.
func (t *Triggers) Restore(triggered []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range triggered {
		if st, ok := t.states[id]; ok {
			st.Status = ZoneTriggered
		}
	}
}

// Close cancels every cooldown timer. Check is a no-op afterwards.
func (t *Triggers) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.clearLocked()
	t.closed = true
}
