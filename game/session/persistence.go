package session

import (
	"time"

	"github.com/wricardo/grid-explorer/game/engine"
)

// SessionPersistence defines the interface for persisting sessions. Only the
// progress ledger and the vehicle pose survive a restart; cooldowns and the
// open overlay do not.
type SessionPersistence interface {
	// Save persists a session to storage
	Save(data *PersistedSessionData) error

	// Load retrieves a session from storage by ID
	Load(id string) (*PersistedSessionData, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the stored form of a session
type PersistedSessionData struct {
	ID             string                  `json:"id"`
	ConfigName     string                  `json:"config_name"`
	CreatedAt      time.Time               `json:"created_at"`
	LastAccessedAt time.Time               `json:"last_accessed_at"`
	Progress       engine.ProgressSnapshot `json:"progress"`
	Position       engine.Point            `json:"position"`
	Heading        float64                 `json:"heading"`
}
