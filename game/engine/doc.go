// Package engine provides the real-time simulation core for Grid Explorer.
//
// The engine package implements:
//   - A frame-paced scheduler with ordered update and render handlers
//   - A kinematic vehicle model with smoothed acceleration and boundary clamping
//   - A zone trigger state machine with one-shot awards and re-entry cooldowns
//   - A progression ledger tracking experience, level and completion
//   - A rules gate that centralizes pause-aware permission checks
//
// Core Types:
//
// World is the composition root. It owns the Scheduler, Vehicle, ZoneRegistry,
// Triggers, Ledger and Rules for a single session and wires them to the external
// Renderer, UI and InputSource collaborators supplied at construction.
//
// Usage:
//
//	cfg, err := engine.LoadGameConfig("configs/classic.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	world, err := engine.NewWorld(cfg, engine.Dependencies{
//		Renderer: renderer,
//		UI:       ui,
//		Input:    engine.NewLatchedInput(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer world.Close()
//
//	world.Start()
//
// Frame Order:
//
// Every frame runs vehicle update, then trigger evaluation, then progression
// side effects and UI notifications, then the render pass. While paused the
// update phase is skipped but render still runs, so the view stays live.
//
// Timers:
//
// Zone cooldowns run on the wall clock and are not frozen by pause. World.Close
// cancels them so they never fire into a disposed world.
package engine
