package engine

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func intPtr(n int) *int { return &n }

func zoneAt(id string, x, z float64, reward int) ZoneSpec {
	return ZoneSpec{
		ID:        id,
		Name:      id,
		Position:  &Point{X: x, Z: z},
		OverlayID: id + "-overlay",
		XPReward:  intPtr(reward),
	}
}

// createTestConfig returns a five zone world with every zone far from the
// origin and from each other
func createTestConfig() *GameConfig {
	cfg := DefaultGameConfig()
	cfg.Name = "Engine Test Config"
	cfg.Description = "Configuration for engine tests"
	cfg.Zones = []ZoneSpec{
		zoneAt("a", 0, -40, 25),
		zoneAt("b", 40, 0, 25),
		zoneAt("c", -40, 0, 25),
		zoneAt("d", 0, 40, 25),
		zoneAt("e", 60, 60, 25),
	}
	return cfg
}

type toastCall struct {
	Title    string
	Message  string
	Kind     ToastKind
	Duration time.Duration
}

type labelCall struct {
	Name     string
	Subtitle string
}

type recordingUI struct {
	mu       sync.Mutex
	labels   []labelCall
	progress [][2]int
	toasts   []toastCall
	opened   []string
	closed   []string
}

func (u *recordingUI) NotifyZoneLabel(name, subtitle string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.labels = append(u.labels, labelCall{name, subtitle})
}

func (u *recordingUI) NotifyProgress(xp, maxXP int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.progress = append(u.progress, [2]int{xp, maxXP})
}

func (u *recordingUI) ShowToast(title, message string, kind ToastKind, d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.toasts = append(u.toasts, toastCall{title, message, kind, d})
}

func (u *recordingUI) OpenOverlay(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.opened = append(u.opened, id)
}

func (u *recordingUI) CloseOverlay(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = append(u.closed, id)
}

func (u *recordingUI) toastTitles() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.toasts))
	for _, t := range u.toasts {
		out = append(out, t.Title)
	}
	return out
}

func (u *recordingUI) openedOverlays() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.opened...)
}

func (u *recordingUI) lastLabel() labelCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.labels) == 0 {
		return labelCall{}
	}
	return u.labels[len(u.labels)-1]
}

type recordingRenderer struct {
	mu       sync.Mutex
	added    []any
	removed  []any
	renders  int
	followed []mgl64.Vec3
	err      error
}

func (r *recordingRenderer) AddToWorld(obj any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, obj)
}

func (r *recordingRenderer) RemoveFromWorld(obj any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, obj)
}

func (r *recordingRenderer) Render(scene, camera any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
	return r.err
}

func (r *recordingRenderer) FollowTarget(pos mgl64.Vec3, heading float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followed = append(r.followed, pos)
}

func (r *recordingRenderer) renderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// pauseCounter implements PauseRequester
type pauseCounter struct {
	flag  *PauseFlag
	calls int
}

func (p *pauseCounter) Pause() {
	p.calls++
	if p.flag != nil {
		p.flag.Set(true)
	}
}
