package repository

import (
	"time"

	eventdomain "eventscout-backend/internal/event/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncCursorRepository tracks the per-user mailbox watermark. Advance is
// an upsert and never moves the cursor backward, so redelivered or
// reordered jobs cannot regress it.
type SyncCursorRepository interface {
	Get(userID string) (*eventdomain.SyncCursor, error)
	Advance(userID string, at time.Time, messageID string) error
}

type syncCursorRepository struct {
	db *gorm.DB
}

// NewSyncCursorRepository creates a new GORM-backed SyncCursorRepository
func NewSyncCursorRepository(db *gorm.DB) SyncCursorRepository {
	return &syncCursorRepository{db: db}
}

func (r *syncCursorRepository) Get(userID string) (*eventdomain.SyncCursor, error) {
	var cursor eventdomain.SyncCursor
	err := r.db.Where("user_id = ?", userID).First(&cursor).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cursor, nil
}

func (r *syncCursorRepository) Advance(userID string, at time.Time, messageID string) error {
	var cursor eventdomain.SyncCursor
	err := r.db.Where("user_id = ?", userID).First(&cursor).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		cursor = eventdomain.SyncCursor{
			ID:              uuid.New().String(),
			UserID:          userID,
			LastProcessedAt: &at,
			LastMessageID:   messageID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return r.db.Create(&cursor).Error
	} else if err != nil {
		return err
	}

	// Monotonic: ignore anything older than what we already recorded
	if cursor.LastProcessedAt != nil && at.Before(*cursor.LastProcessedAt) {
		return nil
	}

	cursor.LastProcessedAt = &at
	cursor.LastMessageID = messageID
	cursor.UpdatedAt = now
	return r.db.Save(&cursor).Error
}
