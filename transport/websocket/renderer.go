package websocket

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/wricardo/grid-explorer/game/engine"
)

// DefaultFrameInterval caps frame events at 20 per second
const DefaultFrameInterval = 50 * time.Millisecond

// Frame is the payload of a frame event
type Frame struct {
	Seq      uint64       `json:"seq"`
	Position engine.Point `json:"position"`
	Heading  float64      `json:"heading"`
}

// SceneObject is the payload of scene_add and scene_remove events
type SceneObject struct {
	Kind string                 `json:"kind"` // "vehicle" or "zone"
	Zone *engine.ZoneDescriptor `json:"zone,omitempty"`
	At   *engine.Point          `json:"at,omitempty"`
}

// FrameRenderer implements engine.Renderer by streaming the followed pose to
// a session's clients. Render is called every frame; a frame event is only
// sent when the pose moved and the interval has passed since the last one.
type FrameRenderer struct {
	out       Broadcaster
	sessionID string
	clock     clock.Clock
	interval  time.Duration

	mu       sync.Mutex
	target   mgl64.Vec3
	heading  float64
	sent     mgl64.Vec3
	sentHead float64
	lastSent time.Time
	seq      uint64
	primed   bool
}

// NewFrameRenderer creates a renderer bound to one session. A nil clock uses
// the wall clock and a non-positive interval uses DefaultFrameInterval.
func NewFrameRenderer(out Broadcaster, sessionID string, clk clock.Clock, interval time.Duration) *FrameRenderer {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameRenderer{
		out:       out,
		sessionID: sessionID,
		clock:     clk,
		interval:  interval,
	}
}

// AddToWorld announces a scene object
func (r *FrameRenderer) AddToWorld(obj any) {
	if so, ok := describe(obj); ok {
		r.out.BroadcastEvent(r.sessionID, EventSceneAdd, so)
	}
}

// RemoveFromWorld announces a removed scene object
func (r *FrameRenderer) RemoveFromWorld(obj any) {
	if so, ok := describe(obj); ok {
		r.out.BroadcastEvent(r.sessionID, EventSceneRemove, so)
	}
}

func describe(obj any) (SceneObject, bool) {
	switch o := obj.(type) {
	case engine.ZoneDescriptor:
		at := engine.PointFrom(o.Position)
		return SceneObject{Kind: "zone", Zone: &o, At: &at}, true
	case *engine.Vehicle:
		at := engine.PointFrom(o.Position())
		return SceneObject{Kind: "vehicle", At: &at}, true
	}
	return SceneObject{}, false
}

// FollowTarget records the pose the camera tracks
func (r *FrameRenderer) FollowTarget(pos mgl64.Vec3, heading float64) {
	r.mu.Lock()
	r.target = pos
	r.heading = heading
	r.mu.Unlock()
}

// Render sends a frame event when due. Scene and camera are unused.
func (r *FrameRenderer) Render(_, _ any) error {
	r.mu.Lock()
	now := r.clock.Now()
	if r.primed && (now.Sub(r.lastSent) < r.interval || (r.target == r.sent && r.heading == r.sentHead)) {
		r.mu.Unlock()
		return nil
	}
	r.primed = true
	r.seq++
	r.lastSent = now
	r.sent = r.target
	r.sentHead = r.heading
	frame := Frame{Seq: r.seq, Position: engine.PointFrom(r.target), Heading: r.heading}
	r.mu.Unlock()

	r.out.BroadcastEvent(r.sessionID, EventFrame, frame)
	return nil
}

// Frames returns the number of frame events sent
func (r *FrameRenderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}
