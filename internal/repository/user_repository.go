// internal/repository/user_repository.go
package repository

import (
	"context"
	"time"

	"chat-realtime-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	FindByID(ctx context.Context, userID uuid.UUID) (*model.User, error)

	IsContact(ctx context.Context, ownerID, contactID uuid.UUID) (bool, error)
	// AddContacts links both users to each other. Existing links are kept.
	AddContacts(ctx context.Context, a, b uuid.UUID) error

	PushTokens(ctx context.Context, userIDs ...uuid.UUID) ([]string, error)
	UpdateLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) IsContact(ctx context.Context, ownerID, contactID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserContact{}).
		Where("user_id = ? AND contact_id = ?", ownerID, contactID).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepository) AddContacts(ctx context.Context, a, b uuid.UUID) error {
	contacts := []model.UserContact{
		{UserID: a, ContactID: b},
		{UserID: b, ContactID: a},
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&contacts).Error
}

func (r *userRepository) PushTokens(ctx context.Context, userIDs ...uuid.UUID) ([]string, error) {
	var tokens []string
	if len(userIDs) == 0 {
		return tokens, nil
	}
	err := r.db.WithContext(ctx).Model(&model.PushToken{}).
		Where("user_id IN ?", userIDs).
		Order("created_at ASC").
		Pluck("token", &tokens).Error
	return tokens, err
}

func (r *userRepository) UpdateLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_seen", at).Error
}
