package repository

import (
	"time"

	eventdomain "eventscout-backend/internal/event/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRepository persists events and their user associations. The
// (source, source_id) pair is unique and is the pipeline's dedup key.
type EventRepository interface {
	FindBySource(source, sourceID string) (*eventdomain.Event, error)
	CreateWithAssociation(event *eventdomain.Event, userID string) error
	ListByUser(userID string, limit, offset int) ([]*eventdomain.Event, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new GORM-backed EventRepository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) FindBySource(source, sourceID string) (*eventdomain.Event, error) {
	var event eventdomain.Event
	err := r.db.Where("source = ? AND source_id = ?", source, sourceID).First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// CreateWithAssociation writes the event row and its user link in one
// transaction so a crash cannot leave an orphaned event.
func (r *eventRepository) CreateWithAssociation(event *eventdomain.Event, userID string) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		link := eventdomain.UserEvent{
			UserID:    userID,
			EventID:   event.ID,
			Added:     true,
			CreatedAt: now,
		}
		return tx.Create(&link).Error
	})
}

func (r *eventRepository) ListByUser(userID string, limit, offset int) ([]*eventdomain.Event, error) {
	var events []*eventdomain.Event
	query := r.db.Model(&eventdomain.Event{}).
		Joins("JOIN user_events ON user_events.event_id = events.id").
		Where("user_events.user_id = ?", userID).
		Order("events.start_time ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&events).Error
	return events, err
}
