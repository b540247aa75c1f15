package websocket

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wricardo/grid-explorer/game/engine"
)

// MaxVisibleToasts is how many toasts a client shows at once; more are queued
const MaxVisibleToasts = 3

// Broadcaster delivers session events to connected clients
type Broadcaster interface {
	BroadcastEvent(sessionID string, event string, data interface{})
}

// Toast is the payload of a toast event
type Toast struct {
	ID         int64            `json:"id"`
	Title      string           `json:"title"`
	Message    string           `json:"message,omitempty"`
	Kind       engine.ToastKind `json:"kind"`
	DurationMS int64            `json:"duration_ms"`
}

// ZoneLabel is the payload of a zone_label event
type ZoneLabel struct {
	Name     string `json:"name"`
	Subtitle string `json:"subtitle"`
}

// Progress is the payload of a progress event
type Progress struct {
	XP      int `json:"xp"`
	MaxXP   int `json:"max_xp"`
	Percent int `json:"percent"`
}

// SessionUI implements engine.UI by pushing events to a session's clients.
// It keeps at most MaxVisibleToasts toasts visible, dismissing each after its
// duration and promoting queued ones in order.
type SessionUI struct {
	out       Broadcaster
	sessionID string
	clock     clock.Clock

	mu     sync.Mutex
	nextID int64
	active []Toast
	queue  []Toast
	timers map[int64]*clock.Timer
	label  ZoneLabel
	closed bool
}

// NewSessionUI creates a UI bound to one session. A nil clock uses the wall
// clock.
func NewSessionUI(out Broadcaster, sessionID string, clk clock.Clock) *SessionUI {
	if clk == nil {
		clk = clock.New()
	}
	return &SessionUI{
		out:       out,
		sessionID: sessionID,
		clock:     clk,
		timers:    make(map[int64]*clock.Timer),
	}
}

// NotifyZoneLabel pushes the current zone label when it changes
func (u *SessionUI) NotifyZoneLabel(name, subtitle string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	label := ZoneLabel{Name: name, Subtitle: subtitle}
	if u.closed || label == u.label {
		return
	}
	u.label = label
	u.out.BroadcastEvent(u.sessionID, EventZoneLabel, label)
}

// NotifyProgress pushes the experience bar
func (u *SessionUI) NotifyProgress(xp, maxXP int) {
	percent := 0
	if maxXP > 0 {
		percent = xp * 100 / maxXP
	}
	u.emit(EventProgress, Progress{XP: xp, MaxXP: maxXP, Percent: percent})
}

// ShowToast displays a toast, or queues it when MaxVisibleToasts are visible
func (u *SessionUI) ShowToast(title, message string, kind engine.ToastKind, duration time.Duration) {
	if duration <= 0 {
		duration = engine.DefaultToastDuration
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}

	u.nextID++
	toast := Toast{
		ID:         u.nextID,
		Title:      title,
		Message:    message,
		Kind:       kind,
		DurationMS: duration.Milliseconds(),
	}

	if len(u.active) >= MaxVisibleToasts {
		u.queue = append(u.queue, toast)
		return
	}
	u.displayLocked(toast)
}

func (u *SessionUI) displayLocked(toast Toast) {
	u.active = append(u.active, toast)
	u.out.BroadcastEvent(u.sessionID, EventToast, toast)

	id := toast.ID
	u.timers[id] = u.clock.AfterFunc(time.Duration(toast.DurationMS)*time.Millisecond, func() {
		u.dismiss(id)
	})
}

// dismiss removes a visible toast and promotes the next queued one
func (u *SessionUI) dismiss(id int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}

	delete(u.timers, id)
	for i, t := range u.active {
		if t.ID == id {
			u.active = append(u.active[:i], u.active[i+1:]...)
			u.out.BroadcastEvent(u.sessionID, EventToastDismiss, map[string]int64{"id": id})
			break
		}
	}

	if len(u.queue) > 0 && len(u.active) < MaxVisibleToasts {
		next := u.queue[0]
		u.queue = u.queue[1:]
		u.displayLocked(next)
	}
}

// OpenOverlay tells clients to show an overlay panel
func (u *SessionUI) OpenOverlay(id string) {
	u.emit(EventOverlayOpen, map[string]string{"overlay_id": id})
}

// CloseOverlay tells clients to hide an overlay panel
func (u *SessionUI) CloseOverlay(id string) {
	u.emit(EventOverlayClose, map[string]string{"overlay_id": id})
}

// Toasts returns the visible and queued toasts
func (u *SessionUI) Toasts() (visible, queued []Toast) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Toast(nil), u.active...), append([]Toast(nil), u.queue...)
}

// Close cancels pending dismiss timers; later notifications are dropped
func (u *SessionUI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}
	u.closed = true
	for id, t := range u.timers {
		t.Stop()
		delete(u.timers, id)
	}
	u.active = nil
	u.queue = nil
}

func (u *SessionUI) emit(event string, data interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}
	u.out.BroadcastEvent(u.sessionID, event, data)
}
