// internal/repository/message_repository.go
package repository

import (
	"context"

	"chat-realtime-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	FindByID(ctx context.Context, messageID uuid.UUID) (*model.Message, error)
	FindByIDWithUsers(ctx context.Context, messageID uuid.UUID) (*model.Message, error)

	// MarkDelivered moves a single message from sent to delivered.
	MarkDelivered(ctx context.Context, messageID uuid.UUID) (int64, error)
	// MarkConversationRead moves every delivered message from sender to
	// receiver to read and reports how many rows changed.
	MarkConversationRead(ctx context.Context, receiverID, senderID uuid.UUID) (int64, error)
	FindUndelivered(ctx context.Context, receiverID uuid.UUID) ([]model.Message, error)
	MarkManyDelivered(ctx context.Context, messageIDs []uuid.UUID) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) FindByID(ctx context.Context, messageID uuid.UUID) (*model.Message, error) {
	var message model.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", messageID).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindByIDWithUsers(ctx context.Context, messageID uuid.UUID) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&message, "id = ?", messageID).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) MarkDelivered(ctx context.Context, messageID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND status = ?", messageID, model.MessageStatusSent).
		Update("status", model.MessageStatusDelivered)
	return res.RowsAffected, res.Error
}

func (r *messageRepository) MarkConversationRead(ctx context.Context, receiverID, senderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND status = ?", receiverID, senderID, model.MessageStatusDelivered).
		Update("status", model.MessageStatusRead)
	return res.RowsAffected, res.Error
}

func (r *messageRepository) FindUndelivered(ctx context.Context, receiverID uuid.UUID) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", receiverID, model.MessageStatusSent).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) MarkManyDelivered(ctx context.Context, messageIDs []uuid.UUID) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id IN ? AND status = ?", messageIDs, model.MessageStatusSent).
		Update("status", model.MessageStatusDelivered)
	return res.RowsAffected, res.Error
}
