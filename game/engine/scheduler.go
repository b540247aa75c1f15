package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// UpdateFunc runs during the update phase. dt and elapsed are in seconds.
type UpdateFunc func(dt, elapsed float64) error

// RenderFunc runs during the render phase, including while paused
type RenderFunc func() error

type updateHandler struct {
	name string
	fn   UpdateFunc
}

type renderHandler struct {
	name string
	fn   RenderFunc
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithClock sets the clock driving the ticker and frame timing
func WithClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the scheduler logger
func WithLogger(l zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithTargetFPS sets the ticker rate
func WithTargetFPS(fps int) SchedulerOption {
	return func(s *Scheduler) {
		if fps > 0 {
			s.targetFPS = fps
		}
	}
}

// WithPauseFlag shares a pause flag with other components
func WithPauseFlag(p *PauseFlag) SchedulerOption {
	return func(s *Scheduler) { s.pause = p }
}

// WithFrameLock makes every Step hold l for the whole frame
func WithFrameLock(l sync.Locker) SchedulerOption {
	return func(s *Scheduler) { s.frameLock = l }
}

func withMetrics(m *engineMetrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler drives frames: timing, the update phase (skipped while paused),
// the render phase and finally the renderer itself.
type Scheduler struct {
	renderer  Renderer
	scene     any
	camera    any
	clock     clock.Clock
	logger    zerolog.Logger
	pause     *PauseFlag
	frameLock sync.Locker
	metrics   *engineMetrics
	targetFPS int

	mu       sync.Mutex
	updates  []updateHandler
	renders  []renderHandler
	running  bool
	stop     chan struct{}
	last     time.Time
	elapsed  float64
	delta    float64
	frame    uint64
	samples  [FPSSampleWindow]float64
	nsamples int
	cursor   int
	fps      int
}

// NewScheduler creates a stopped scheduler
func NewScheduler(renderer Renderer, scene, camera any, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		renderer:  renderer,
		scene:     scene,
		camera:    camera,
		clock:     clock.New(),
		logger:    zerolog.Nop(),
		targetFPS: DefaultTargetFPS,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pause == nil {
		s.pause = &PauseFlag{}
	}
	s.logger = s.logger.With().Str("component", "scheduler").Logger()
	return s
}

// OnUpdate registers an update handler. It returns false when fn is nil or
// the name is already taken.
func (s *Scheduler) OnUpdate(name string, fn UpdateFunc) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.updates {
		if h.name == name {
			return false
		}
	}
	s.updates = append(s.updates, updateHandler{name: name, fn: fn})
	return true
}

// OnRender registers a render handler. It returns false when fn is nil or the
// name is already taken.
func (s *Scheduler) OnRender(name string, fn RenderFunc) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.renders {
		if h.name == name {
			return false
		}
	}
	s.renders = append(s.renders, renderHandler{name: name, fn: fn})
	return true
}

// RemoveUpdate unregisters an update handler, keeping the order of the rest
func (s *Scheduler) RemoveUpdate(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.updates {
		if h.name == name {
			s.updates = append(s.updates[:i:i], s.updates[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveRender unregisters a render handler, keeping the order of the rest
func (s *Scheduler) RemoveRender(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.renders {
		if h.name == name {
			s.renders = append(s.renders[:i:i], s.renders[i+1:]...)
			return true
		}
	}
	return false
}

// Start begins ticking at the target rate. Starting a running scheduler logs
// a warning and returns false.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("scheduler already running")
		return false
	}

	s.running = true
	s.last = time.Time{}
	s.stop = make(chan struct{})

	ticker := s.clock.Ticker(time.Second / time.Duration(s.targetFPS))
	go s.loop(ticker, s.stop)

	s.logger.Info().Int("target_fps", s.targetFPS).Msg("scheduler started")
	return true
}

func (s *Scheduler) loop(ticker *clock.Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// a stop issued while this tick was pending cancels it
			select {
			case <-stop:
				return
			default:
			}
			s.Step()
		}
	}
}

// Stop cancels the next frame and halts the clock. A frame already in
// progress completes. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.last = time.Time{}
	s.logger.Info().Uint64("frames", s.frame).Msg("scheduler stopped")
}

// Running reports whether the ticker loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Pause freezes the update phase. Render keeps running.
func (s *Scheduler) Pause() {
	if s.pause.Set(true) {
		s.logger.Info().Msg("paused")
	}
}

// Resume unfreezes the update phase. The first frame after resuming has a
// zero delta.
func (s *Scheduler) Resume() {
	if s.pause.Set(false) {
		s.mu.Lock()
		s.last = time.Time{}
		s.mu.Unlock()
		s.logger.Info().Msg("resumed")
	}
}

// TogglePause flips the pause flag and returns the new state
func (s *Scheduler) TogglePause() bool {
	if s.pause.Paused() {
		s.Resume()
		return false
	}
	s.Pause()
	return true
}

// Paused reports whether the update phase is frozen
func (s *Scheduler) Paused() bool {
	return s.pause.Paused()
}

// Step runs a single frame using the clock for timing
func (s *Scheduler) Step() {
	now := s.clock.Now()

	s.mu.Lock()
	var dt float64
	if !s.last.IsZero() {
		dt = now.Sub(s.last).Seconds()
	}
	s.last = now
	s.mu.Unlock()

	s.step(dt)
}

// StepFixed runs a single frame with a fixed delta, for deterministic
// stepping outside the ticker
func (s *Scheduler) StepFixed(dt time.Duration) {
	s.step(dt.Seconds())
}

func (s *Scheduler) step(dt float64) {
	if s.frameLock != nil {
		s.frameLock.Lock()
		defer s.frameLock.Unlock()
	}

	paused := s.pause.Paused()

	s.mu.Lock()
	s.frame++
	s.delta = dt
	if !paused {
		s.elapsed += dt
	}
	s.sample(dt)
	elapsed := s.elapsed
	updates := append([]updateHandler(nil), s.updates...)
	renders := append([]renderHandler(nil), s.renders...)
	s.mu.Unlock()

	if !paused {
		for _, h := range updates {
			s.run("update", h.name, func() error { return h.fn(dt, elapsed) })
		}
	}
	for _, h := range renders {
		s.run("render", h.name, h.fn)
	}

	if s.renderer != nil {
		s.run("render", "renderer", func() error { return s.renderer.Render(s.scene, s.camera) })
	}

	s.metrics.frame(paused)
}

// sample must be called with s.mu held
func (s *Scheduler) sample(dt float64) {
	if dt <= 0 {
		return
	}
	s.samples[s.cursor] = 1 / dt
	s.cursor = (s.cursor + 1) % FPSSampleWindow
	if s.nsamples < FPSSampleWindow {
		s.nsamples++
	}

	var sum float64
	for i := 0; i < s.nsamples; i++ {
		sum += s.samples[i]
	}
	s.fps = int(math.Round(sum / float64(s.nsamples)))
}

func (s *Scheduler) run(phase, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.handlerFailed(phase, name)
			s.logger.Error().
				Str("phase", phase).
				Str("handler", name).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("handler panicked")
		}
	}()

	if err := fn(); err != nil {
		s.metrics.handlerFailed(phase, name)
		s.logger.Error().Str("phase", phase).Str("handler", name).Err(err).Msg("handler failed")
	}
}

// FPS returns the rolling frame rate over the last FPSSampleWindow frames
func (s *Scheduler) FPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// Elapsed returns unpaused simulation time in seconds
func (s *Scheduler) Elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Frame returns the number of frames stepped
func (s *Scheduler) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// SchedulerInfo is a point-in-time report of the scheduler
type SchedulerInfo struct {
	Running        bool    `json:"running"`
	Paused         bool    `json:"paused"`
	FPS            int     `json:"fps"`
	TargetFPS      int     `json:"target_fps"`
	Elapsed        float64 `json:"elapsed"`
	Delta          float64 `json:"delta"`
	Frame          uint64  `json:"frame"`
	UpdateHandlers int     `json:"update_handlers"`
	RenderHandlers int     `json:"render_handlers"`
}

// Info reports the scheduler state
func (s *Scheduler) Info() SchedulerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerInfo{
		Running:        s.running,
		Paused:         s.pause.Paused(),
		FPS:            s.fps,
		TargetFPS:      s.targetFPS,
		Elapsed:        s.elapsed,
		Delta:          s.delta,
		Frame:          s.frame,
		UpdateHandlers: len(s.updates),
		RenderHandlers: len(s.renders),
	}
}

// ResetClock zeroes elapsed time and the FPS window
func (s *Scheduler) ResetClock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = 0
	s.delta = 0
	s.last = time.Time{}
	s.samples = [FPSSampleWindow]float64{}
	s.nsamples = 0
	s.cursor = 0
	s.fps = 0
}

// Dispose stops the scheduler and drops every handler
func (s *Scheduler) Dispose() {
	s.Stop()
	s.mu.Lock()
	s.updates = nil
	s.renders = nil
	s.mu.Unlock()
	s.logger.Debug().Msg("scheduler disposed")
}
