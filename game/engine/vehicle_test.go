package engine

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVehicle(t *testing.T, mutate func(*GameConfig)) (*Vehicle, *Rules, *PauseFlag, *recordingRenderer) {
	t.Helper()
	cfg := createTestConfig()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, ValidateGameConfig(cfg))

	pause := &PauseFlag{}
	rules := NewRules(cfg, pause, nil, zerolog.Nop())
	renderer := &recordingRenderer{}
	return NewVehicle(cfg, rules, renderer, zerolog.Nop()), rules, pause, renderer
}

func TestVehicle_ForwardMovesAlongNegativeZ(t *testing.T) {
	v, _, _, renderer := newTestVehicle(t, nil)

	var pose VehiclePose
	for i := 0; i < 30; i++ {
		pose = v.Update(InputSnapshot{Forward: true}, 1.0/60)
	}

	assert.True(t, pose.Moving)
	assert.False(t, pose.Sprinting)
	assert.Less(t, pose.Position.Z(), 0.0)
	assert.InDelta(t, 0, pose.Position.X(), 1e-9)
	assert.Equal(t, 0.5, pose.Position.Y(), "hover height is pinned")
	assert.Len(t, renderer.followed, 30)
}

func TestVehicle_VelocityApproachesDesiredSpeed(t *testing.T) {
	v, _, _, _ := newTestVehicle(t, nil)

	for i := 0; i < 200; i++ {
		v.Update(InputSnapshot{Forward: true}, 0)
	}
	assert.InDelta(t, 0.5, v.Pose().Velocity.Len(), 1e-6)

	for i := 0; i < 200; i++ {
		v.Update(InputSnapshot{Forward: true, Sprint: true}, 0)
	}
	assert.InDelta(t, 1.0, v.Pose().Velocity.Len(), 1e-6)
	assert.True(t, v.Pose().Sprinting)
}

func TestVehicle_DeceleratesWithoutInput(t *testing.T) {
	v, _, _, _ := newTestVehicle(t, nil)

	for i := 0; i < 50; i++ {
		v.Update(InputSnapshot{Forward: true}, 0)
	}
	moving := v.Pose().Velocity.Len()

	pose := v.Update(InputSnapshot{}, 0)
	assert.False(t, pose.Moving)
	assert.InDelta(t, moving*0.95, pose.Velocity.Len(), 1e-9)
}

func TestVehicle_OpposingButtonsCancel(t *testing.T) {
	v, _, _, _ := newTestVehicle(t, nil)
	pose := v.Update(InputSnapshot{Forward: true, Backward: true}, 0)
	assert.False(t, pose.Moving)
	assert.Equal(t, mgl64.Vec3{}, pose.Velocity)
}

func TestVehicle_TurningIsFixedPerFrame(t *testing.T) {
	v, _, _, _ := newTestVehicle(t, nil)

	v.Update(InputSnapshot{Left: true}, 0)
	v.Update(InputSnapshot{Left: true}, 0)
	assert.InDelta(t, 0.1, v.Heading(), 1e-12)

	v.Update(InputSnapshot{Right: true}, 0)
	assert.InDelta(t, 0.05, v.Heading(), 1e-12)

	v.Update(InputSnapshot{Left: true, Right: true}, 0)
	assert.InDelta(t, 0.05, v.Heading(), 1e-12)
}

func TestVehicle_HeadingRotatesDirection(t *testing.T) {
	v, _, _, _ := newTestVehicle(t, func(c *GameConfig) {
		c.Bike.Acceleration = 1
	})
	v.Place(mgl64.Vec3{}, -math.Pi/2)

	pose := v.Update(InputSnapshot{Forward: true}, 0)
	assert.InDelta(t, 0.5, pose.Velocity.X(), 1e-9, "heading -pi/2 faces +x")
	assert.InDelta(t, 0, pose.Velocity.Z(), 1e-9)
}

// Boundary 90, start at x=85, ten forward frames at speed 1 must stop at 90.
func TestVehicle_ClampsAtBoundary(t *testing.T) {
	v, _, _, _ := newTestVehicle(t, func(c *GameConfig) {
		c.World.BoundaryLimit = 90
		c.Bike.Speed = 1
		c.Bike.SprintSpeed = 1
		c.Bike.Acceleration = 1
		c.Bike.StartPosition = Point{X: 85, Y: 0.5, Z: 0}
	})
	v.Place(mgl64.Vec3{85, 0.5, 0}, -math.Pi/2)

	for i := 0; i < 10; i++ {
		pose := v.Update(InputSnapshot{Forward: true}, 1.0/60)
		assert.LessOrEqual(t, math.Abs(pose.Position.X()), 90.0)
		assert.LessOrEqual(t, math.Abs(pose.Position.Z()), 90.0)
	}
	assert.Equal(t, 90.0, v.Position().X())
}

func TestVehicle_FreeRoamIgnoresBoundary(t *testing.T) {
	v, rules, _, _ := newTestVehicle(t, func(c *GameConfig) {
		c.Bike.Speed = 1
		c.Bike.Acceleration = 1
	})
	rules.SetFreeRoam(true)
	v.Place(mgl64.Vec3{89, 0.5, 0}, -math.Pi/2)

	for i := 0; i < 5; i++ {
		v.Update(InputSnapshot{Forward: true}, 0)
	}
	assert.InDelta(t, 94, v.Position().X(), 1e-9)
}

func TestVehicle_SkipsWhilePaused(t *testing.T) {
	v, _, pause, renderer := newTestVehicle(t, nil)
	pause.Set(true)

	pose := v.Update(InputSnapshot{Forward: true, Left: true}, 1)
	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, pose.Position)
	assert.Equal(t, 0.0, pose.Heading)
	assert.Empty(t, renderer.followed)
}

func TestVehicle_ResetPosition(t *testing.T) {
	v, _, _, _ := newTestVehicle(t, nil)
	for i := 0; i < 20; i++ {
		v.Update(InputSnapshot{Forward: true, Left: true}, 0)
	}
	require.NotEqual(t, mgl64.Vec3{0, 0.5, 0}, v.Position())

	v.ResetPosition()
	pose := v.Pose()
	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, pose.Position)
	assert.Equal(t, mgl64.Vec3{}, pose.Velocity)
	assert.Equal(t, 0.0, pose.Heading)
}
