package domain

import "time"

// Event is a calendar event discovered in a user's mailbox and persisted
// after extraction. Rows are created once by the pipeline; later edits
// belong to the CRUD layer.
type Event struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Platform    string     `json:"platform,omitempty"`
	Link        string     `json:"link,omitempty"`
	StartTime   time.Time  `json:"start_time" gorm:"not null"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Source      string     `json:"source" gorm:"index:idx_source_message,unique;not null"`
	SourceID    string     `json:"source_id" gorm:"index:idx_source_message,unique;not null"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UserEvent links a user to an event. The pipeline creates one per Event
// it materializes; the CRUD layer uses the last link's removal to decide
// whether the Event itself should go.
type UserEvent struct {
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	EventID   string    `json:"event_id" gorm:"primaryKey"`
	Added     bool      `json:"added" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
}
