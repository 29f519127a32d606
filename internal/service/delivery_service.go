package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"chat-realtime-service/internal/client"
	"chat-realtime-service/internal/metrics"
	"chat-realtime-service/internal/model"
	"chat-realtime-service/internal/presence"
	"chat-realtime-service/internal/push"
	"chat-realtime-service/internal/realtime"
	"chat-realtime-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	replyPreviewLength = 100
	fileMessageBody    = "Sent a file"
)

type DirectMessageInput struct {
	ReceiverID  uuid.UUID
	Content     string
	MessageType model.MessageType
	FileURL     *string
	ReplyTo     *uuid.UUID
}

type ChannelMessageInput struct {
	ChannelID   uuid.UUID
	Content     string
	MessageType model.MessageType
	FileURL     *string
	ReplyTo     *uuid.UUID
}

// DeliveryService persists new messages and fans them out to every live
// connection of the parties involved, falling back to push notifications.
type DeliveryService interface {
	SendDirectMessage(ctx context.Context, senderID uuid.UUID, in DirectMessageInput) (*model.Message, error)
	SendChannelMessage(ctx context.Context, senderID uuid.UUID, in ChannelMessageInput) (*model.Message, error)
}

type deliveryService struct {
	messageRepo repository.MessageRepository
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository
	registry    presence.Registry
	emitter     Emitter
	push        *push.Dispatcher
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewDeliveryService(
	messageRepo repository.MessageRepository,
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	registry presence.Registry,
	emitter Emitter,
	dispatcher *push.Dispatcher,
	logger *zap.Logger,
	m *metrics.Metrics,
) DeliveryService {
	return &deliveryService{
		messageRepo: messageRepo,
		channelRepo: channelRepo,
		userRepo:    userRepo,
		registry:    registry,
		emitter:     emitter,
		push:        dispatcher,
		logger:      logger,
		metrics:     m,
	}
}

func (s *deliveryService) SendDirectMessage(ctx context.Context, senderID uuid.UUID, in DirectMessageInput) (*model.Message, error) {
	if in.ReceiverID == uuid.Nil || senderID == uuid.Nil {
		return nil, ErrInvalidRecipient
	}
	if !clientMessageType(in.MessageType) {
		return nil, ErrInvalidMessageType
	}

	message := &model.Message{
		SenderID:    senderID,
		ReceiverID:  &in.ReceiverID,
		MessageType: in.MessageType,
		Content:     in.Content,
		FileURL:     in.FileURL,
		Status:      model.MessageStatusSent,
		ReplyTo:     s.replyReference(ctx, in.ReplyTo),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		s.metrics.RecordMessageSent(metrics.KindDirect, metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	enriched, err := s.messageRepo.FindByIDWithUsers(ctx, message.ID)
	if err != nil {
		s.metrics.RecordMessageSent(metrics.KindDirect, metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to load message: %w", err)
	}

	receiverConns := s.registry.ConnectionsFor(in.ReceiverID)
	senderConns := s.registry.ConnectionsFor(senderID)

	s.linkContacts(ctx, enriched)

	if len(receiverConns) > 0 {
		if _, err := s.messageRepo.MarkDelivered(ctx, enriched.ID); err != nil {
			s.metrics.RecordMessageSent(metrics.KindDirect, metrics.OutcomeFailed)
			return nil, fmt.Errorf("failed to mark message delivered: %w", err)
		}
		enriched.Status = model.MessageStatusDelivered

		s.emitter.EmitTo(connectionsOf(s.registry, senderID, in.ReceiverID), realtime.EventReceiveMessage, realtime.NewMessageView(enriched))
		s.metrics.RecordMessageSent(metrics.KindDirect, metrics.OutcomeDelivered)
		return enriched, nil
	}

	if len(senderConns) > 0 {
		s.emitter.EmitTo(senderConns, realtime.EventReceiveMessage, realtime.NewMessageView(enriched))
	}
	s.metrics.RecordMessageSent(metrics.KindDirect, metrics.OutcomeOffline)

	title := senderID.String()
	if enriched.Sender != nil {
		title = enriched.Sender.FirstName
	}
	receiverID := in.ReceiverID
	body := pushBody(enriched)
	s.push.Dispatch(metrics.KindDirect, func(ctx context.Context) (client.PushMessage, error) {
		tokens, err := s.userRepo.PushTokens(ctx, receiverID)
		if err != nil {
			return client.PushMessage{}, err
		}
		return client.PushMessage{
			Tokens: tokens,
			Title:  title,
			Body:   body,
			Data: map[string]string{
				"type":     "message",
				"senderId": senderID.String(),
			},
		}, nil
	})

	return enriched, nil
}

// linkContacts makes sender and receiver contacts of each other on their
// first exchange and tells both sides about the new conversation.
func (s *deliveryService) linkContacts(ctx context.Context, message *model.Message) {
	if message.ReceiverID == nil || *message.ReceiverID == message.SenderID {
		return
	}
	receiverID := *message.ReceiverID

	known, err := s.userRepo.IsContact(ctx, receiverID, message.SenderID)
	if err != nil {
		s.logger.Warn("Failed to check contact",
			zap.String("userId", receiverID.String()),
			zap.Error(err),
		)
		return
	}
	if known {
		return
	}

	if err := s.userRepo.AddContacts(ctx, message.SenderID, receiverID); err != nil {
		s.logger.Warn("Failed to add contacts",
			zap.String("senderId", message.SenderID.String()),
			zap.String("receiverId", receiverID.String()),
			zap.Error(err),
		)
		return
	}

	if message.Sender != nil {
		emitToUsers(s.emitter, s.registry, realtime.EventNewDMContact, realtime.NewUserSummary(message.Sender), receiverID)
	}
	if message.Receiver != nil {
		emitToUsers(s.emitter, s.registry, realtime.EventNewDMContact, realtime.NewUserSummary(message.Receiver), message.SenderID)
	}
}

func (s *deliveryService) SendChannelMessage(ctx context.Context, senderID uuid.UUID, in ChannelMessageInput) (*model.Message, error) {
	if in.ChannelID == uuid.Nil || senderID == uuid.Nil {
		return nil, ErrInvalidRecipient
	}
	if !clientMessageType(in.MessageType) {
		return nil, ErrInvalidMessageType
	}

	message := &model.Message{
		SenderID:    senderID,
		ChannelID:   &in.ChannelID,
		MessageType: in.MessageType,
		Content:     in.Content,
		FileURL:     in.FileURL,
		Status:      model.MessageStatusSent,
		ReplyTo:     s.replyReference(ctx, in.ReplyTo),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		s.metrics.RecordMessageSent(metrics.KindChannel, metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	// not transactional: a failure past this point leaves the message unindexed
	if err := s.channelRepo.AppendMessage(ctx, in.ChannelID, message.ID); err != nil {
		s.metrics.RecordMessageSent(metrics.KindChannel, metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to index channel message: %w", err)
	}

	channel, err := s.channelRepo.FindWithMembers(ctx, in.ChannelID)
	if err != nil {
		s.metrics.RecordMessageSent(metrics.KindChannel, metrics.OutcomeFailed)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to load channel: %w", err)
	}

	enriched, err := s.messageRepo.FindByIDWithUsers(ctx, message.ID)
	if err != nil {
		s.metrics.RecordMessageSent(metrics.KindChannel, metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to load message: %w", err)
	}

	var conns []string
	var offline []uuid.UUID
	recipients := channel.RecipientIDs()
	senderListed := false
	for _, id := range recipients {
		if id == senderID {
			senderListed = true
		}
		c := s.registry.ConnectionsFor(id)
		if len(c) == 0 {
			if id != senderID {
				offline = append(offline, id)
			}
			continue
		}
		conns = append(conns, c...)
	}
	if !senderListed {
		conns = append(conns, s.registry.ConnectionsFor(senderID)...)
	}

	if len(conns) > 0 {
		s.emitter.EmitTo(conns, realtime.EventReceiveChannelMessage, realtime.NewMessageView(enriched))
	}

	if len(offline) == 0 {
		s.metrics.RecordMessageSent(metrics.KindChannel, metrics.OutcomeDelivered)
		return enriched, nil
	}
	s.metrics.RecordMessageSent(metrics.KindChannel, metrics.OutcomeOffline)

	senderName := senderID.String()
	if enriched.Sender != nil {
		senderName = enriched.Sender.FirstName
	}
	title := fmt.Sprintf("%s in %s", senderName, channel.Name)
	body := pushBody(enriched)
	channelID := channel.ID
	s.push.Dispatch(metrics.KindChannel, func(ctx context.Context) (client.PushMessage, error) {
		tokens, err := s.userRepo.PushTokens(ctx, offline...)
		if err != nil {
			return client.PushMessage{}, err
		}
		return client.PushMessage{
			Tokens: tokens,
			Title:  title,
			Body:   body,
			Data: map[string]string{
				"type":      "channel",
				"channelId": channelID.String(),
			},
		}, nil
	})

	return enriched, nil
}

// replyReference snapshots the referenced message. A missing original is
// dropped rather than failing the send.
func (s *deliveryService) replyReference(ctx context.Context, replyTo *uuid.UUID) model.ReplyReference {
	if replyTo == nil || *replyTo == uuid.Nil {
		return model.ReplyReference{}
	}

	original, err := s.messageRepo.FindByID(ctx, *replyTo)
	if err != nil {
		s.logger.Debug("Reply target not found",
			zap.String("messageId", replyTo.String()),
			zap.Error(err),
		)
		return model.ReplyReference{}
	}

	id, senderID := original.ID, original.SenderID
	return model.ReplyReference{
		ID:       &id,
		SenderID: &senderID,
		Type:     original.MessageType,
		Preview:  replyPreview(original),
	}
}

func replyPreview(m *model.Message) string {
	if m.MessageType == model.MessageTypeFile && m.FileURL != nil {
		return fileName(*m.FileURL)
	}
	return truncateRunes(m.Content, replyPreviewLength)
}

func pushBody(m *model.Message) string {
	if m.Content == "" {
		return fileMessageBody
	}
	return m.Content
}

func fileName(fileURL string) string {
	p := fileURL
	if u, err := url.Parse(fileURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return path.Base(p)
}

// clientMessageType reports whether a client may send t. Empty means text.
func clientMessageType(t model.MessageType) bool {
	return t == "" || t == model.MessageTypeText || t == model.MessageTypeFile
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
