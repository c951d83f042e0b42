package repository

import (
	interestdomain "eventscout-backend/internal/interest/domain"

	"gorm.io/gorm"
)

// InterestRepository exposes the interest lookups the pipeline needs.
// Managing interests (set/create/delete) belongs to the CRUD layer.
type InterestRepository interface {
	// ListNamesForUser returns the user's catalog interests plus custom
	// interests as plain strings, the form the relevance filter and the
	// extraction prompt consume.
	ListNamesForUser(userID string) ([]string, error)
}

type interestRepository struct {
	db *gorm.DB
}

// NewInterestRepository creates a new GORM-backed InterestRepository
func NewInterestRepository(db *gorm.DB) InterestRepository {
	return &interestRepository{db: db}
}

func (r *interestRepository) ListNamesForUser(userID string) ([]string, error) {
	var interests []interestdomain.Interest
	err := r.db.
		Joins("JOIN user_interests ON user_interests.interest_id = interests.id").
		Where("user_interests.user_id = ?", userID).
		Find(&interests).Error
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(interests))
	for _, i := range interests {
		names = append(names, i.Child)
	}

	var custom []interestdomain.CustomInterest
	if err := r.db.Where("user_id = ?", userID).Find(&custom).Error; err != nil {
		return nil, err
	}
	for _, c := range custom {
		names = append(names, c.Name)
	}

	return names, nil
}
