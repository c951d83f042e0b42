package repository

import (
	"time"

	authdomain "eventscout-backend/internal/auth/domain"

	"gorm.io/gorm"
)

// UserRepository reads and updates user records. Token writes happen
// through UpdateTokens so a refreshed credential lands in one place.
type UserRepository interface {
	FindByID(id string) (*authdomain.User, error)
	FindByEmail(email string) (*authdomain.User, error)
	List() ([]*authdomain.User, error)
	Update(user *authdomain.User) error
	UpdateTokens(userID, accessToken, refreshToken string, expiry *time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new GORM-backed UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List() ([]*authdomain.User, error) {
	var users []*authdomain.User
	err := r.db.Find(&users).Error
	return users, err
}

func (r *userRepository) Update(user *authdomain.User) error {
	user.UpdatedAt = time.Now()
	return r.db.Save(user).Error
}

func (r *userRepository) UpdateTokens(userID, accessToken, refreshToken string, expiry *time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"updated_at":   time.Now(),
	}
	// A token refresh does not always return a new refresh token
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	if expiry != nil {
		updates["token_expiry"] = expiry
	}
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).Updates(updates).Error
}
