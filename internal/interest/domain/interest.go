package domain

import "time"

// Interest is a catalog entry users can subscribe to, grouped by a
// parent category ("Technology" / "Machine Learning").
type Interest struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Category  string    `json:"category" gorm:"not null"`
	Child     string    `json:"child" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// UserInterest links a user to a catalog interest.
type UserInterest struct {
	UserID     string    `json:"user_id" gorm:"primaryKey"`
	InterestID string    `json:"interest_id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
}

// CustomInterest is a free-form interest a user typed in themselves.
type CustomInterest struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}
