// Package api provides the HTTP REST API for grid explorer sessions.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session ({config_id, session_id, realtime})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/unified - Several sessions side by side (?sessionIds=a,b or ?configName=x)
//   - GET /api/sessions/{id} - Get a session with its world state
//   - DELETE /api/sessions/{id} - Delete a session and close its world
//
// Simulation:
//   - GET /api/sessions/{id}/state - Full world state
//   - GET /api/sessions/{id}/zones - Zones with status and cooldown
//   - POST /api/sessions/{id}/input - Hold buttons ({forward, left, sprint, ...} or {keys: ["KeyW"]})
//   - POST /api/sessions/{id}/advance - Run fixed-step frames ({frames, keys|input})
//   - POST /api/sessions/{id}/pause, /resume, /reset
//   - POST /api/sessions/{id}/overlays/{overlay}/close - Close the open overlay and resume
//
// Configuration:
//   - GET /api/configs - List world configurations
//   - GET /api/configs/{name} - Get one configuration
//   - POST /api/configs - Validate and save a configuration
//
// Other:
//   - GET /api/health
//   - GET /ws?sessionId=ID - WebSocket stream of session events
//
// Advance Responses:
//
// POST /api/sessions/{id}/advance returns frames_requested, frames_run,
// stop_reason (paused, completed or truncated), message, events (zone_enter
// and zone_exit with xp awarded), xp_delta, start_pos, end_pos and the
// resulting state. Requests above 600 frames are truncated.
//
// Error Handling:
//
// Errors are returned as {"error": "message"}: 404 for unknown sessions and
// configs, 400 for invalid requests or configs and for closing an overlay
// when none is open, 410 for a closed world, 500 otherwise.
package api
