// internal/repository/channel_repository.go
package repository

import (
	"context"

	"chat-realtime-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChannelRepository interface {
	FindWithMembers(ctx context.Context, channelID uuid.UUID) (*model.Channel, error)
	AppendMessage(ctx context.Context, channelID, messageID uuid.UUID) error
}

type channelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) FindWithMembers(ctx context.Context, channelID uuid.UUID) (*model.Channel, error) {
	var channel model.Channel
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		First(&channel, "id = ?", channelID).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) AppendMessage(ctx context.Context, channelID, messageID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ChannelMessage{ChannelID: channelID, MessageID: messageID}).Error
}
