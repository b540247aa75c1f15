package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wricardo/grid-explorer/game/engine"
)

// sessionRecord is the sessions table row
type sessionRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	ConfigName     string `gorm:"size:128"`
	CreatedAt      time.Time
	LastAccessedAt time.Time `gorm:"index"`
	XP             int
	Level          int
	Completed      bool
	VisitedZoneIDs datatypes.JSON
	Pose           datatypes.JSON
}

func (sessionRecord) TableName() string { return "sessions" }

type storedPose struct {
	Position engine.Point `json:"position"`
	Heading  float64      `json:"heading"`
}

// SQLitePersistence implements SessionPersistence on a SQLite database
type SQLitePersistence struct {
	db *gorm.DB
}

// NewSQLitePersistence opens (or creates) the database at path and migrates
// the sessions table. An empty path uses a shared in-memory database.
func NewSQLitePersistence(path string) (*SQLitePersistence, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}

	return &SQLitePersistence{db: db}, nil
}

// Save upserts a session row
func (sp *SQLitePersistence) Save(data *PersistedSessionData) error {
	if data == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if !validID(data.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, data.ID)
	}

	visited := data.Progress.VisitedZoneIDs
	if visited == nil {
		visited = []string{}
	}
	visitedJSON, err := json.Marshal(visited)
	if err != nil {
		return fmt.Errorf("failed to marshal visited zones: %w", err)
	}
	poseJSON, err := json.Marshal(storedPose{Position: data.Position, Heading: data.Heading})
	if err != nil {
		return fmt.Errorf("failed to marshal pose: %w", err)
	}

	rec := sessionRecord{
		ID:             data.ID,
		ConfigName:     data.ConfigName,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
		XP:             data.Progress.XP,
		Level:          data.Progress.Level,
		Completed:      data.Progress.Completed,
		VisitedZoneIDs: datatypes.JSON(visitedJSON),
		Pose:           datatypes.JSON(poseJSON),
	}

	err = sp.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads a session row
func (sp *SQLitePersistence) Load(id string) (*PersistedSessionData, error) {
	var rec sessionRecord
	err := sp.db.Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	data := &PersistedSessionData{
		ID:             rec.ID,
		ConfigName:     rec.ConfigName,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: rec.LastAccessedAt,
		Progress: engine.ProgressSnapshot{
			XP:             rec.XP,
			Level:          rec.Level,
			Completed:      rec.Completed,
			VisitedZoneIDs: []string{},
		},
	}

	if len(rec.VisitedZoneIDs) > 0 {
		if err := json.Unmarshal(rec.VisitedZoneIDs, &data.Progress.VisitedZoneIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal visited zones: %w", err)
		}
	}
	if len(rec.Pose) > 0 {
		var pose storedPose
		if err := json.Unmarshal(rec.Pose, &pose); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pose: %w", err)
		}
		data.Position = pose.Position
		data.Heading = pose.Heading
	}

	return data, nil
}

// Delete removes a session row
func (sp *SQLitePersistence) Delete(id string) error {
	res := sp.db.Where("id = ?", id).Delete(&sessionRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all stored session IDs, most recently used first
func (sp *SQLitePersistence) ListAll() ([]string, error) {
	var ids []string
	err := sp.db.Model(&sessionRecord{}).Order("last_accessed_at DESC").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Exists checks if a session row exists
func (sp *SQLitePersistence) Exists(id string) bool {
	var count int64
	if err := sp.db.Model(&sessionRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// Close releases the database handle
func (sp *SQLitePersistence) Close() error {
	sqlDB, err := sp.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
