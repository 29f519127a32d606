// Package push runs push notification sends off the request path.
package push

import (
	"context"
	"sync"
	"time"

	"chat-realtime-service/internal/client"
	"chat-realtime-service/internal/metrics"

	"go.uber.org/zap"
)

// BuildFunc resolves the message to send, typically by loading device tokens.
type BuildFunc func(ctx context.Context) (client.PushMessage, error)

// Dispatcher fires push notifications in detached goroutines. Callers never
// see the outcome: failures are logged and counted, never retried.
type Dispatcher struct {
	client  client.PushClient
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewDispatcher(c client.PushClient, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		client:  c,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

func (d *Dispatcher) Dispatch(kind string, build BuildFunc) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Panic in push dispatch",
					zap.String("kind", kind),
					zap.Any("panic", r),
					zap.Stack("stacktrace"),
				)
				d.metrics.RecordPushDispatch(kind, metrics.PushFailed)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		msg, err := build(ctx)
		if err != nil {
			d.logger.Warn("Failed to prepare push notification", zap.String("kind", kind), zap.Error(err))
			d.metrics.RecordPushDispatch(kind, metrics.PushFailed)
			return
		}
		if len(msg.Tokens) == 0 {
			d.metrics.RecordPushDispatch(kind, metrics.PushSkipped)
			return
		}

		if err := d.client.SendMulticast(ctx, msg); err != nil {
			d.logger.Warn("Failed to send push notification",
				zap.String("kind", kind),
				zap.Int("tokens", len(msg.Tokens)),
				zap.Error(err),
			)
			d.metrics.RecordPushDispatch(kind, metrics.PushFailed)
			return
		}
		d.metrics.RecordPushDispatch(kind, metrics.PushSent)
	}()
}

// Wait blocks until every dispatched send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
