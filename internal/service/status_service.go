package service

import (
	"context"
	"fmt"

	"chat-realtime-service/internal/model"
	"chat-realtime-service/internal/presence"
	"chat-realtime-service/internal/realtime"
	"chat-realtime-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusService moves message status forward and tells both parties.
type StatusService interface {
	// MarkRead marks everything otherID delivered to viewerID as read. Both
	// users are notified only when at least one row changed.
	MarkRead(ctx context.Context, viewerID, otherID uuid.UUID) (int64, error)
	// FlushUndelivered delivers whatever reached userID while it was offline
	// and notifies each sender.
	FlushUndelivered(ctx context.Context, userID uuid.UUID) error
}

type statusService struct {
	messageRepo repository.MessageRepository
	registry    presence.Registry
	emitter     Emitter
	logger      *zap.Logger
}

func NewStatusService(
	messageRepo repository.MessageRepository,
	registry presence.Registry,
	emitter Emitter,
	logger *zap.Logger,
) StatusService {
	return &statusService{
		messageRepo: messageRepo,
		registry:    registry,
		emitter:     emitter,
		logger:      logger,
	}
}

func (s *statusService) MarkRead(ctx context.Context, viewerID, otherID uuid.UUID) (int64, error) {
	if viewerID == uuid.Nil || otherID == uuid.Nil {
		return 0, nil
	}

	rows, err := s.messageRepo.MarkConversationRead(ctx, viewerID, otherID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	if rows == 0 {
		return 0, nil
	}

	sender := otherID
	emitToUsers(s.emitter, s.registry, realtime.EventMessageStatusUpdate, realtime.StatusUpdate{
		SenderID:   &sender,
		ReceiverID: viewerID,
		Status:     model.MessageStatusRead,
	}, viewerID, otherID)

	return rows, nil
}

func (s *statusService) FlushUndelivered(ctx context.Context, userID uuid.UUID) error {
	pending, err := s.messageRepo.FindUndelivered(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load undelivered messages: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	var senders []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, m := range pending {
		ids = append(ids, m.ID)
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			senders = append(senders, m.SenderID)
		}
	}

	rows, err := s.messageRepo.MarkManyDelivered(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to mark messages delivered: %w", err)
	}

	for _, senderID := range senders {
		sender := senderID
		emitToUsers(s.emitter, s.registry, realtime.EventMessageStatusUpdate, realtime.StatusUpdate{
			SenderID:   &sender,
			ReceiverID: userID,
			Status:     model.MessageStatusDelivered,
		}, senderID)
	}

	s.logger.Debug("Flushed undelivered messages",
		zap.String("userId", userID.String()),
		zap.Int64("count", rows),
		zap.Int("senders", len(senders)),
	)
	return nil
}
