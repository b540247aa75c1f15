package engine

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type worldFixture struct {
	world    *World
	ui       *recordingUI
	renderer *recordingRenderer
	input    *LatchedInput
	clock    *clock.Mock
}

func newWorldFixture(t *testing.T, cfg *GameConfig) *worldFixture {
	t.Helper()
	if cfg == nil {
		cfg = createTestConfig()
	}
	f := &worldFixture{
		ui:       &recordingUI{},
		renderer: &recordingRenderer{},
		input:    NewLatchedInput(),
		clock:    clock.NewMock(),
	}
	w, err := NewWorld(cfg, Dependencies{
		Renderer: f.renderer,
		UI:       f.ui,
		Input:    f.input,
		Clock:    f.clock,
	})
	require.NoError(t, err)
	t.Cleanup(w.Close)
	f.world = w
	return f
}

func TestNewWorld_MissingDependencies(t *testing.T) {
	ui := &recordingUI{}
	renderer := &recordingRenderer{}
	input := NewLatchedInput()

	tests := []struct {
		name string
		cfg  *GameConfig
		deps Dependencies
	}{
		{"config", nil, Dependencies{Renderer: renderer, UI: ui, Input: input}},
		{"renderer", createTestConfig(), Dependencies{UI: ui, Input: input}},
		{"ui", createTestConfig(), Dependencies{Renderer: renderer, Input: input}},
		{"input", createTestConfig(), Dependencies{Renderer: renderer, UI: ui}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWorld(tt.cfg, tt.deps)
			assert.Nil(t, w)
			assert.ErrorIs(t, err, ErrMissingDependency)
			assert.Contains(t, err.Error(), tt.name)
		})
	}
	assert.Empty(t, renderer.added, "nothing is wired on failure")
}

func TestNewWorld_NoValidZones(t *testing.T) {
	cfg := createTestConfig()
	cfg.Zones = []ZoneSpec{{ID: "broken"}}
	_, err := NewWorld(cfg, Dependencies{Renderer: NopRenderer{}, UI: &recordingUI{}, Input: NewLatchedInput()})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestNewWorld_InvalidConfig(t *testing.T) {
	cfg := createTestConfig()
	cfg.Bike.Speed = -1
	_, err := NewWorld(cfg, Dependencies{Renderer: NopRenderer{}, UI: &recordingUI{}, Input: NewLatchedInput()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewWorld_TotalZonesDefaultsToValidZones(t *testing.T) {
	cfg := createTestConfig()
	cfg.Game.TotalZones = 0
	cfg.Zones = append(cfg.Zones, ZoneSpec{ID: "broken"})
	f := newWorldFixture(t, cfg)

	assert.Equal(t, 5, f.world.Ledger().TotalZones())
	assert.Equal(t, 125, f.world.Ledger().MaxXP())
}

func TestNewWorld_AddsObjectsToRenderer(t *testing.T) {
	f := newWorldFixture(t, nil)
	assert.Len(t, f.renderer.added, 6)

	f.world.Close()
	f.world.Close()
	assert.Len(t, f.renderer.removed, 6)
	assert.ErrorIs(t, f.world.Step(), ErrWorldClosed)
	assert.ErrorIs(t, f.world.Start(), ErrWorldClosed)
}

func TestWorld_DriveIntoZone(t *testing.T) {
	f := newWorldFixture(t, nil)
	require.NoError(t, f.world.SetInput(InputSnapshot{Forward: true}))

	frames, err := f.world.Advance(MaxAdvanceFrames)
	require.NoError(t, err)
	assert.Less(t, frames, MaxAdvanceFrames, "advance stops once the overlay pauses the world")

	state := f.world.State()
	assert.True(t, state.Paused)
	assert.Equal(t, "a-overlay", state.OpenOverlay)
	assert.Equal(t, 25, state.Progress.XP)
	assert.Equal(t, 2, state.Progress.Level)
	assert.Equal(t, []string{"a"}, state.Progress.VisitedZoneIDs)
	assert.Equal(t, "a", state.Progress.CurrentZone)
	assert.Equal(t, uint64(frames), state.Frame)
	assert.Less(t, state.Pose.Position.Z, -30.0)
	assert.Equal(t, "triggered", state.Zones[0].Status)
	assert.True(t, state.Zones[0].Active)
	assert.Equal(t, "idle", state.Zones[1].Status)

	events := f.world.RecentEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ZoneEnter, events[0].Type)

	// paused worlds do not advance
	n, err := f.world.Advance(10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// closing the overlay resumes
	require.NoError(t, f.world.CloseOverlay(""))
	assert.False(t, f.world.Paused())
	assert.Equal(t, []string{"a-overlay"}, f.ui.closed)
	assert.ErrorIs(t, f.world.CloseOverlay(""), ErrNoOverlayOpen)

	n, err = f.world.Advance(5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 25, f.world.Progress().XP, "triggered zones never award twice")
}

func TestWorld_PauseButtonToggleOnRisingEdge(t *testing.T) {
	f := newWorldFixture(t, nil)

	f.input.Set(InputSnapshot{Pause: true})
	require.NoError(t, f.world.Step())
	assert.True(t, f.world.Paused())

	// held, no new edge
	require.NoError(t, f.world.Step())
	assert.True(t, f.world.Paused())

	f.input.Release()
	require.NoError(t, f.world.Step())
	f.input.Set(InputSnapshot{Pause: true})
	require.NoError(t, f.world.Step())
	assert.False(t, f.world.Paused(), "render phase still sees the pause button while paused")
}

func TestWorld_CenterButtonResetsVehicle(t *testing.T) {
	f := newWorldFixture(t, nil)
	f.world.PlaceVehicle(mgl64.Vec3{20, 0, 20}, 1)

	f.input.Set(InputSnapshot{Center: true})
	require.NoError(t, f.world.Step())

	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, f.world.Pose().Position)
}

func TestWorld_PauseResume(t *testing.T) {
	f := newWorldFixture(t, nil)
	require.NoError(t, f.world.SetInput(InputSnapshot{Forward: true}))

	f.world.Pause()
	n, _ := f.world.Advance(10)
	assert.Equal(t, 0, n)
	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, f.world.Pose().Position)

	f.world.Resume()
	n, _ = f.world.Advance(10)
	assert.Equal(t, 10, n)
	assert.Less(t, f.world.Pose().Position.Z(), 0.0)

	assert.True(t, f.world.TogglePause())
	assert.False(t, f.world.TogglePause())
}

func TestWorld_ResetRearmsZones(t *testing.T) {
	f := newWorldFixture(t, nil)
	f.world.SetInput(InputSnapshot{Forward: true})
	f.world.Advance(MaxAdvanceFrames)
	require.Equal(t, 25, f.world.Progress().XP)

	require.NoError(t, f.world.Reset())

	state := f.world.State()
	assert.False(t, state.Paused)
	assert.Equal(t, "", state.OpenOverlay)
	assert.Equal(t, 0, state.Progress.XP)
	assert.Equal(t, Point{X: 0, Y: 0.5, Z: 0}, state.Pose.Position)
	for _, z := range state.Zones {
		assert.Equal(t, "idle", z.Status)
	}
	assert.Equal(t, labelCall{ExplorationLabel, ExplorationSubtitle}, f.ui.lastLabel())

	f.world.Advance(MaxAdvanceFrames)
	assert.Equal(t, 25, f.world.Progress().XP, "zone awards again after reset")
}

func TestWorld_RestoreProgress(t *testing.T) {
	f := newWorldFixture(t, nil)

	err := f.world.RestoreProgress(ProgressSnapshot{XP: 25, Level: 2, VisitedZoneIDs: []string{"nowhere"}})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	require.NoError(t, f.world.RestoreProgress(ProgressSnapshot{XP: 25, Level: 2, VisitedZoneIDs: []string{"a"}}))

	f.world.SetInput(InputSnapshot{Forward: true})
	n, _ := f.world.Advance(200)
	assert.Equal(t, 200, n, "restored zone does not trigger again")
	assert.Equal(t, 25, f.world.Progress().XP)
	assert.Empty(t, f.ui.openedOverlays())
}

func TestWorld_StartShowsWelcomeOnce(t *testing.T) {
	f := newWorldFixture(t, nil)

	require.NoError(t, f.world.Start())
	f.world.Stop()
	require.NoError(t, f.world.Start())
	f.world.Stop()

	count := 0
	for _, toast := range f.ui.toasts {
		if toast.Title == "WELCOME TO THE GRID" {
			count++
			assert.Equal(t, ToastInfo, toast.Kind)
			assert.Equal(t, WelcomeToastDuration, toast.Duration)
		}
	}
	assert.Equal(t, 1, count)
}

func TestWorld_FreeRoam(t *testing.T) {
	f := newWorldFixture(t, nil)
	f.world.SetFreeRoam(true)
	f.world.PlaceVehicle(mgl64.Vec3{150, 0, 0}, 0)

	assert.Equal(t, 150.0, f.world.Pose().Position.X())
	assert.True(t, f.world.State().FreeRoam)
}

type fixedInput struct{}

func (fixedInput) Snapshot() InputSnapshot { return InputSnapshot{} }

func TestWorld_SetInputRequiresSettableSource(t *testing.T) {
	w, err := NewWorld(createTestConfig(), Dependencies{Renderer: NopRenderer{}, UI: &recordingUI{}, Input: fixedInput{}, Clock: clock.NewMock()})
	require.NoError(t, err)
	defer w.Close()

	assert.ErrorIs(t, w.SetInput(InputSnapshot{Forward: true}), ErrInputNotSettable)
}

func TestWorld_EventsSince(t *testing.T) {
	f := newWorldFixture(t, nil)
	seq := f.world.EventSeq()
	assert.Equal(t, uint64(0), seq)

	f.world.SetInput(InputSnapshot{Forward: true})
	f.world.Advance(MaxAdvanceFrames)

	events, next := f.world.EventsSince(seq)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Zone.ID)
	assert.Equal(t, uint64(1), next)

	events, _ = f.world.EventsSince(next)
	assert.Empty(t, events)
}

type closingUI struct {
	recordingUI
	closes int
}

func (u *closingUI) Close() { u.closes++ }

func TestWorld_CloseClosesCollaborators(t *testing.T) {
	ui := &closingUI{}
	w, err := NewWorld(createTestConfig(), Dependencies{Renderer: NopRenderer{}, UI: ui, Input: NewLatchedInput(), Clock: clock.NewMock()})
	require.NoError(t, err)

	w.Close()
	w.Close()
	assert.Equal(t, 1, ui.closes)
}
