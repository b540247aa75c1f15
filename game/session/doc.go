// Package session owns the live worlds behind each player session.
//
// The Manager maps session IDs to service.Session values. Every session holds
// one engine.World built by a WorldFactory; the default factory builds
// headless worlds, while the server wires factories whose UI and renderer push
// to websocket clients. Deleting or expiring a session closes its world, which
// stops its frame loop and cancels pending cooldown timers.
//
// Session Identifiers:
//
// Generated IDs are 4 hex characters from crypto/rand. Custom IDs may use
// letters, digits, '-' and '_'. Lookups are case-insensitive.
//
// Persistence:
//
// Two SessionPersistence implementations are provided. FilePersistence writes
// one JSON file per session; SQLitePersistence keeps a sessions table through
// gorm. Only the progress ledger and the vehicle pose are stored. Loading a
// session rebuilds its world from the named config, restores the ledger
// (visited zones stay triggered) and places the vehicle.
//
// Usage:
//
//	store, _ := session.NewSQLitePersistence("sessions.db")
//	manager := session.NewManager(
//		session.WithPersistence(store, configManager),
//		session.WithLogger(logger),
//	)
//	defer manager.Close()
//
//	sess, err := manager.Create("", "classic", cfg)
package session
