package domain

import "time"

// SyncCursor records, per user, the newest mailbox message the pipeline
// has already accounted for. It only ever moves forward and is advanced
// after a run's events have been persisted, never speculatively.
type SyncCursor struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	UserID          string     `json:"user_id" gorm:"uniqueIndex;not null"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	LastMessageID   string     `json:"last_message_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
