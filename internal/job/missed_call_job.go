package job

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	missedCallBatchSize = 200
	missedCallTimeout   = 30 * time.Second
)

// CallExpirer is the part of the call service the sweeper needs.
type CallExpirer interface {
	ExpireUnanswered(ctx context.Context, startedBefore time.Time, limit int) (int, error)
}

// MissedCallJob marks calls that rang longer than missedAfter without being
// answered as missed.
type MissedCallJob struct {
	calls       CallExpirer
	missedAfter time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewMissedCallJob(calls CallExpirer, missedAfter time.Duration, logger *zap.Logger) *MissedCallJob {
	return &MissedCallJob{
		calls:       calls,
		missedAfter: missedAfter,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one sweep. It drains in batches so a backlog does not hold a
// single long transaction.
func (j *MissedCallJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), missedCallTimeout)
	defer cancel()

	cutoff := j.now().Add(-j.missedAfter)
	total := 0
	for {
		expired, err := j.calls.ExpireUnanswered(ctx, cutoff, missedCallBatchSize)
		total += expired
		if err != nil {
			j.logger.Error("Failed to expire unanswered calls",
				zap.Time("cutoff", cutoff),
				zap.Int("expired", total),
				zap.Error(err),
			)
			return
		}
		if expired < missedCallBatchSize {
			break
		}
	}

	if total > 0 {
		j.logger.Info("Missed call sweep completed", zap.Int("expired", total))
	}
}
