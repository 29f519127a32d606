package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	onlineSetKey      = "presence:online"
	lastSeenKeyFmt    = "presence:last_seen:%s"
	lastSeenRetention = 30 * 24 * time.Hour
)

// RedisMirror copies presence transitions into Redis so processes that do not
// own the sockets can answer "who is online". A nil client turns every call
// into a no-op.
type RedisMirror struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisMirror(client *redis.Client, logger *zap.Logger) *RedisMirror {
	return &RedisMirror{client: client, logger: logger}
}

func (m *RedisMirror) Enabled() bool {
	return m != nil && m.client != nil
}

func (m *RedisMirror) MarkOnline(ctx context.Context, userID uuid.UUID) error {
	if !m.Enabled() {
		return nil
	}
	if err := m.client.SAdd(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return fmt.Errorf("mirror online: %w", err)
	}
	return nil
}

func (m *RedisMirror) MarkOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	if !m.Enabled() {
		return nil
	}

	pipe := m.client.TxPipeline()
	pipe.SRem(ctx, onlineSetKey, userID.String())
	pipe.Set(ctx, lastSeenKey(userID), lastSeen.UTC().Format(time.RFC3339Nano), lastSeenRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror offline: %w", err)
	}
	return nil
}

func (m *RedisMirror) OnlineUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	if !m.Enabled() {
		return nil, nil
	}

	members, err := m.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			m.logger.Warn("Skipping malformed presence entry", zap.String("member", member))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LastSeen returns nil when nothing has been recorded for the user.
func (m *RedisMirror) LastSeen(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	if !m.Enabled() {
		return nil, nil
	}

	raw, err := m.client.Get(ctx, lastSeenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse last seen: %w", err)
	}
	return &t, nil
}

// Reset clears the online set. Presence is rebuilt from live sockets on every
// start, so entries left by a previous run are stale.
func (m *RedisMirror) Reset(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return m.client.Del(ctx, onlineSetKey).Err()
}

func lastSeenKey(userID uuid.UUID) string {
	return fmt.Sprintf(lastSeenKeyFmt, userID.String())
}
