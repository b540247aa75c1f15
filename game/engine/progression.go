package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

var (
	// ErrNegativeExperience is returned when AddExperience is given a negative amount
	ErrNegativeExperience = errors.New("experience amount must not be negative")

	// ErrInvalidSnapshot is wrapped when Restore rejects a snapshot
	ErrInvalidSnapshot = errors.New("invalid progress snapshot")
)

// LedgerConfig holds the constants a Ledger derives everything from
type LedgerConfig struct {
	TotalZones    int
	XPPerZone     int
	Disabled      bool
	ToastDuration time.Duration
	Messages      Messages
}

// Ledger tracks experience, level, visited zones and completion
type Ledger struct {
	mu     sync.Mutex
	cfg    LedgerConfig
	ui     UI
	clock  clock.Clock
	logger zerolog.Logger

	xp          int
	level       int
	visited     map[string]struct{}
	order       []string
	completed   bool
	currentZone string
	startedAt   time.Time
}

// NewLedger creates an empty ledger. ui may be nil.
func NewLedger(cfg LedgerConfig, ui UI, clk clock.Clock, logger zerolog.Logger) *Ledger {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = DefaultToastDuration
	}
	if cfg.Messages.CompleteTitle == "" {
		cfg.Messages.CompleteTitle = "EXPLORATION COMPLETE!"
	}
	l := &Ledger{
		cfg:    cfg,
		ui:     ui,
		clock:  clk,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
	l.reset()
	return l
}

type notification func(UI)

func (l *Ledger) emit(ns []notification) {
	if l.ui == nil {
		return
	}
	for _, n := range ns {
		n(l.ui)
	}
}

func (l *Ledger) progressNote() notification {
	xp, limit := l.xp, l.maxXP()
	return func(ui UI) { ui.NotifyProgress(xp, limit) }
}

func (l *Ledger) toastNote(title, message string) notification {
	d := l.cfg.ToastDuration
	return func(ui UI) { ui.ShowToast(title, message, ToastSuccess, d) }
}

func (l *Ledger) maxXP() int {
	return l.cfg.TotalZones * l.cfg.XPPerZone
}

func (l *Ledger) levelFor(xp int) int {
	if l.cfg.XPPerZone <= 0 {
		return 1
	}
	return xp/l.cfg.XPPerZone + 1
}

// AddExperience adds amount, clamped to the maximum, and returns the new
// total. A level-up toast is shown when the level rises.
func (l *Ledger) AddExperience(amount int) (int, error) {
	if amount < 0 {
		return l.XP(), fmt.Errorf("%w: %d", ErrNegativeExperience, amount)
	}

	l.mu.Lock()
	if l.cfg.Disabled {
		xp := l.xp
		l.mu.Unlock()
		return xp, nil
	}

	old := l.xp
	l.xp = min(l.xp+amount, l.maxXP())
	notes := []notification{l.progressNote()}

	if lvl := l.levelFor(l.xp); lvl > l.level {
		l.level = lvl
		l.logger.Info().Int("level", lvl).Msg("level up")
		notes = append(notes, l.toastNote("LEVEL UP!", fmt.Sprintf("You reached level %d", lvl)))
	}
	xp := l.xp
	l.mu.Unlock()

	l.logger.Debug().Int("amount", amount).Int("from", old).Int("to", xp).Msg("experience gained")
	l.emit(notes)
	return xp, nil
}

// MarkVisited records a visit and reports whether it was the first one for
// id. Completion flips exactly once, when the last zone is visited.
func (l *Ledger) MarkVisited(id string) bool {
	l.mu.Lock()
	if _, ok := l.visited[id]; ok {
		l.mu.Unlock()
		return false
	}
	if len(l.visited) >= l.cfg.TotalZones {
		l.mu.Unlock()
		l.logger.Warn().Str("zone_id", id).Int("total_zones", l.cfg.TotalZones).Msg("visit ignored, every zone already counted")
		return false
	}

	l.visited[id] = struct{}{}
	l.order = append(l.order, id)
	count := len(l.visited)

	var notes []notification
	justCompleted := !l.completed && count == l.cfg.TotalZones
	if justCompleted {
		l.completed = true
		notes = append(notes, l.toastNote(l.cfg.Messages.CompleteTitle, l.cfg.Messages.CompleteMessage))
	}
	l.mu.Unlock()

	l.logger.Info().Str("zone_id", id).Int("visited", count).Int("total", l.cfg.TotalZones).Msg("zone visited")
	if justCompleted {
		l.logger.Info().Msg("all zones discovered")
	}
	l.emit(notes)
	return true
}

// SetCurrentZone records the zone the vehicle is in, or "" for none
func (l *Ledger) SetCurrentZone(id string) {
	l.mu.Lock()
	changed := l.currentZone != id
	l.currentZone = id
	l.mu.Unlock()

	if changed {
		l.logger.Debug().Str("zone_id", id).Msg("current zone changed")
	}
}

// Reset clears all progression and restarts play time
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.reset()
	notes := []notification{l.progressNote()}
	l.mu.Unlock()

	l.logger.Info().Msg("progression reset")
	l.emit(notes)
}

func (l *Ledger) reset() {
	l.xp = 0
	l.level = 1
	l.visited = make(map[string]struct{})
	l.order = nil
	l.completed = false
	l.currentZone = ""
	l.startedAt = l.clock.Now()
}

// Snapshot returns the serializable state of the ledger
func (l *Ledger) Snapshot() ProgressSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, len(l.order))
	copy(ids, l.order)
	return ProgressSnapshot{
		XP:             l.xp,
		Level:          l.level,
		VisitedZoneIDs: ids,
		Completed:      l.completed,
	}
}

// ValidateSnapshot checks a snapshot against the ledger invariants
func (l *Ledger) ValidateSnapshot(s ProgressSnapshot) error {
	if s.XP < 0 || s.XP > l.maxXP() {
		return fmt.Errorf("%w: xp %d outside [0, %d]", ErrInvalidSnapshot, s.XP, l.maxXP())
	}
	if want := l.levelFor(s.XP); s.Level != want {
		return fmt.Errorf("%w: level %d does not match xp %d (want %d)", ErrInvalidSnapshot, s.Level, s.XP, want)
	}
	if len(s.VisitedZoneIDs) > l.cfg.TotalZones {
		return fmt.Errorf("%w: %d visited zones exceeds total %d", ErrInvalidSnapshot, len(s.VisitedZoneIDs), l.cfg.TotalZones)
	}
	seen := make(map[string]struct{}, len(s.VisitedZoneIDs))
	for _, id := range s.VisitedZoneIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: zone %q listed twice", ErrInvalidSnapshot, id)
		}
		seen[id] = struct{}{}
	}
	if complete := len(s.VisitedZoneIDs) == l.cfg.TotalZones; s.Completed != complete {
		return fmt.Errorf("%w: completed=%t with %d of %d zones visited", ErrInvalidSnapshot, s.Completed, len(s.VisitedZoneIDs), l.cfg.TotalZones)
	}
	return nil
}

// Restore replaces the ledger contents with a validated snapshot. Play time
// restarts; no level or completion toasts are shown.
func (l *Ledger) Restore(s ProgressSnapshot) error {
	if err := l.ValidateSnapshot(s); err != nil {
		return err
	}

	l.mu.Lock()
	l.reset()
	l.xp = s.XP
	l.level = s.Level
	for _, id := range s.VisitedZoneIDs {
		l.visited[id] = struct{}{}
		l.order = append(l.order, id)
	}
	l.completed = s.Completed
	notes := []notification{l.progressNote()}
	l.mu.Unlock()

	l.logger.Info().Int("xp", s.XP).Int("visited", len(s.VisitedZoneIDs)).Msg("progression restored")
	l.emit(notes)
	return nil
}

// XP returns the current experience
func (l *Ledger) XP() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.xp
}

// Level returns the current level
func (l *Ledger) Level() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// MaxXP returns the experience cap
func (l *Ledger) MaxXP() int { return l.maxXP() }

// TotalZones returns the number of zones needed for completion
func (l *Ledger) TotalZones() int { return l.cfg.TotalZones }

// Completed reports whether every zone has been visited
func (l *Ledger) Completed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}

// Visited reports whether id has been visited
func (l *Ledger) Visited(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.visited[id]
	return ok
}

// VisitedIDs returns visited zone ids sorted alphabetically
func (l *Ledger) VisitedIDs() []string {
	ids := l.Snapshot().VisitedZoneIDs
	sort.Strings(ids)
	return ids
}

// CurrentZone returns the zone the vehicle was last reported in
func (l *Ledger) CurrentZone() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentZone
}

// CompletionPercentage returns visited/total as a whole percentage
func (l *Ledger) CompletionPercentage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.TotalZones == 0 {
		return 0
	}
	return len(l.visited) * 100 / l.cfg.TotalZones
}

// PlayTime returns wall-clock time since the ledger was created or reset
func (l *Ledger) PlayTime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clock.Since(l.startedAt)
}

// View returns the snapshot with derived display values
func (l *Ledger) View() ProgressView {
	return ProgressView{
		ProgressSnapshot:  l.Snapshot(),
		MaxXP:             l.maxXP(),
		TotalZones:        l.cfg.TotalZones,
		CompletionPercent: l.CompletionPercentage(),
		CurrentZone:       l.CurrentZone(),
		PlayTimeSeconds:   l.PlayTime().Seconds(),
	}
}
