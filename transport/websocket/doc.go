// Package websocket streams live session events to browser clients and
// accepts their input.
//
// A central Hub tracks the connections attached to each session. Every
// connection runs a read pump and a write pump; broadcasts never block the
// caller, and a client that cannot keep up is disconnected.
//
// The package also provides the engine collaborators of a served session:
// SessionUI (toasts, zone label, progress bar, overlays) and FrameRenderer
// (throttled pose frames and scene objects). Both push through the hub.
//
// Message Protocol:
//
// Outgoing messages are {"session_id", "event", "data"} where event is one of
// frame, state, zone_label, progress, toast, toast_dismiss, overlay_open,
// overlay_close, scene_add, scene_remove or error.
//
// Incoming messages carry a type:
//   - {"type": "keys", "pressed": ["KeyW", "ShiftLeft"]}
//   - {"type": "close_overlay", "overlay_id": "about-overlay"}
//   - {"type": "pause"}, {"type": "resume"}, {"type": "reset"}
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithCommandHandler(apply))
//	go hub.Run()
//	defer hub.Stop()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("sessionId"))
//	})
package websocket
