// Package service is the business layer between the transports and the
// simulation engine.
//
// GameService exposes session management (create, get, list, delete), the
// simulation commands (set input, advance, close overlay, pause, resume,
// reset), world state queries and configuration access. Each session owns an
// independent engine.World, so sessions with different configurations run
// side by side.
//
// Worlds created with SessionOptions.Realtime run their frame loop against
// the wall clock and are normally driven by held keys over the websocket.
// Other worlds move only when Advance runs fixed-step frames, which makes
// them deterministic and suited to agents and tests. Advance stops early when
// a zone opens its overlay; CloseOverlay resumes the world.
//
// Usage:
//
//	sessions := session.NewManager()
//	configs, _ := config.NewManager("configs")
//	svc := service.NewGameService(sessions, configs)
//
//	info, err := svc.CreateSession(ctx, "classic", service.SessionOptions{})
//	res, err := svc.Advance(ctx, info.ID, service.AdvanceRequest{
//		Frames: 120,
//		Keys:   []string{"KeyW", "ShiftLeft"},
//	})
package service
