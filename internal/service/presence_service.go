package service

import (
	"context"
	"errors"
	"time"

	"chat-realtime-service/internal/metrics"
	"chat-realtime-service/internal/presence"
	"chat-realtime-service/internal/realtime"
	"chat-realtime-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PresenceService drives the connection lifecycle: binding a socket to its
// user, the undelivered-message catch-up and the offline transition.
type PresenceService interface {
	// Identify resolves the summary cached on a connection for typing and
	// call events. Unknown users get an id-only summary.
	Identify(ctx context.Context, userID uuid.UUID) realtime.UserSummary
	Connect(ctx context.Context, userID uuid.UUID, connID string)
	Disconnect(ctx context.Context, userID uuid.UUID, connID string)

	OnlineUserIDs(ctx context.Context) ([]uuid.UUID, error)
	LastSeen(ctx context.Context, userID uuid.UUID) (*time.Time, error)
	IsOnline(userID uuid.UUID) bool
}

type presenceService struct {
	userRepo repository.UserRepository
	registry presence.Registry
	mirror   *presence.RedisMirror
	status   StatusService
	emitter  Emitter
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPresenceService(
	userRepo repository.UserRepository,
	registry presence.Registry,
	mirror *presence.RedisMirror,
	status StatusService,
	emitter Emitter,
	logger *zap.Logger,
	m *metrics.Metrics,
) PresenceService {
	return &presenceService{
		userRepo: userRepo,
		registry: registry,
		mirror:   mirror,
		status:   status,
		emitter:  emitter,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *presenceService) Identify(ctx context.Context, userID uuid.UUID) realtime.UserSummary {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Failed to load user", zap.String("userId", userID.String()), zap.Error(err))
		}
		return realtime.UserSummary{ID: userID}
	}
	return realtime.NewUserSummary(user)
}

func (s *presenceService) Connect(ctx context.Context, userID uuid.UUID, connID string) {
	s.registry.Bind(userID, connID)

	if err := s.mirror.MarkOnline(ctx, userID); err != nil {
		s.logger.Warn("Failed to mirror online status", zap.String("userId", userID.String()), zap.Error(err))
	}
	s.broadcastOnlineUsers()

	if err := s.status.FlushUndelivered(ctx, userID); err != nil {
		s.logger.Error("Failed to flush undelivered messages",
			zap.String("userId", userID.String()),
			zap.Error(err),
		)
	}
}

func (s *presenceService) Disconnect(ctx context.Context, userID uuid.UUID, connID string) {
	if s.registry.Unbind(userID, connID) {
		lastSeen := s.now()

		if err := s.userRepo.UpdateLastSeen(ctx, userID, lastSeen); err != nil {
			s.logger.Error("Failed to update last seen",
				zap.String("userId", userID.String()),
				zap.Error(err),
			)
		}
		if err := s.mirror.MarkOffline(ctx, userID, lastSeen); err != nil {
			s.logger.Warn("Failed to mirror offline status", zap.String("userId", userID.String()), zap.Error(err))
		}

		s.emitter.EmitAll(realtime.EventUserLastSeen, realtime.LastSeen{
			UserID:   userID,
			LastSeen: lastSeen,
		})
	}

	s.broadcastOnlineUsers()
}

func (s *presenceService) broadcastOnlineUsers() {
	online := s.registry.OnlineUserIDs()
	s.metrics.SetOnlineUsers(len(online))
	s.emitter.EmitAll(realtime.EventOnlineUsers, online)
}

// OnlineUserIDs prefers the Redis mirror, which spans every process, and
// falls back to this process's registry.
func (s *presenceService) OnlineUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	if s.mirror.Enabled() {
		ids, err := s.mirror.OnlineUserIDs(ctx)
		if err == nil {
			return ids, nil
		}
		s.logger.Warn("Failed to read presence mirror", zap.Error(err))
	}
	return s.registry.OnlineUserIDs(), nil
}

func (s *presenceService) LastSeen(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	if seen, err := s.mirror.LastSeen(ctx, userID); err == nil && seen != nil {
		return seen, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.LastSeen, nil
}

func (s *presenceService) IsOnline(userID uuid.UUID) bool {
	return s.registry.IsOnline(userID)
}
