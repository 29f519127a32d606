package service

import (
	"context"
	"fmt"

	"chat-realtime-service/internal/presence"
	"chat-realtime-service/internal/realtime"
	"chat-realtime-service/internal/repository"

	"github.com/google/uuid"
)

type TypingInput struct {
	Stop       bool
	ChatType   string
	ReceiverID *uuid.UUID
	ChannelID  *uuid.UUID
}

// TypingService relays typing signals to whoever is connected right now.
// Nothing is stored.
type TypingService interface {
	Broadcast(ctx context.Context, sender realtime.UserSummary, in TypingInput) error
}

type typingService struct {
	channelRepo repository.ChannelRepository
	registry    presence.Registry
	emitter     Emitter
}

func NewTypingService(channelRepo repository.ChannelRepository, registry presence.Registry, emitter Emitter) TypingService {
	return &typingService{
		channelRepo: channelRepo,
		registry:    registry,
		emitter:     emitter,
	}
}

func (s *typingService) Broadcast(ctx context.Context, sender realtime.UserSummary, in TypingInput) error {
	event := realtime.EventTyping
	if in.Stop {
		event = realtime.EventStopTyping
	}
	notice := realtime.TypingNotice{
		ChatType:   in.ChatType,
		SenderID:   sender.ID,
		Sender:     sender,
		ReceiverID: in.ReceiverID,
		ChannelID:  in.ChannelID,
	}

	switch in.ChatType {
	case realtime.ChatTypeContact:
		if in.ReceiverID == nil {
			return nil
		}
		emitToUsers(s.emitter, s.registry, event, notice, *in.ReceiverID)
		return nil

	case realtime.ChatTypeChannel:
		if in.ChannelID == nil {
			return nil
		}
		channel, err := s.channelRepo.FindWithMembers(ctx, *in.ChannelID)
		if err != nil {
			return fmt.Errorf("failed to load channel: %w", err)
		}

		recipients := make([]uuid.UUID, 0, len(channel.Members)+1)
		for _, id := range channel.RecipientIDs() {
			if id != sender.ID {
				recipients = append(recipients, id)
			}
		}
		emitToUsers(s.emitter, s.registry, event, notice, recipients...)
		return nil
	}

	return nil
}
