// internal/repository/call_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"chat-realtime-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallRepository keeps every status change a single conditional UPDATE so
// interleaved signals cannot move a call backwards.
type CallRepository interface {
	Create(ctx context.Context, call *model.Call) error
	Find(ctx context.Context, ref model.CallRef) (*model.Call, error)

	// SetConnectedAt stamps connected_at only while it is still NULL and the
	// call is ongoing. The first accept wins.
	SetConnectedAt(ctx context.Context, callID uuid.UUID, at time.Time) (bool, error)
	Reject(ctx context.Context, callID uuid.UUID, endedAt time.Time, endedBy uuid.UUID) (bool, error)
	Complete(ctx context.Context, callID uuid.UUID, endedAt time.Time, duration int, endedBy uuid.UUID) (bool, error)

	FindStaleUnanswered(ctx context.Context, startedBefore time.Time, limit int) ([]model.Call, error)
	MarkMissed(ctx context.Context, callID uuid.UUID, endedAt time.Time) (bool, error)
}

type callRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) CallRepository {
	return &callRepository{db: db}
}

func (r *callRepository) Create(ctx context.Context, call *model.Call) error {
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *callRepository) Find(ctx context.Context, ref model.CallRef) (*model.Call, error) {
	var call model.Call
	q := r.db.WithContext(ctx)

	switch ref.Kind {
	case model.CallRefInternal:
		q = q.Where("id = ?", ref.ID)
	case model.CallRefExternal:
		q = q.Where("call_key = ?", ref.Key)
	default:
		return nil, fmt.Errorf("unknown call reference kind %d", ref.Kind)
	}

	if err := q.First(&call).Error; err != nil {
		return nil, err
	}
	return &call, nil
}

func (r *callRepository) SetConnectedAt(ctx context.Context, callID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("id = ? AND connected_at IS NULL AND status = ?", callID, model.CallStatusOngoing).
		Update("connected_at", at)
	return res.RowsAffected > 0, res.Error
}

func (r *callRepository) Reject(ctx context.Context, callID uuid.UUID, endedAt time.Time, endedBy uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("id = ? AND status = ?", callID, model.CallStatusOngoing).
		Updates(map[string]interface{}{
			"status":   model.CallStatusRejected,
			"ended_at": endedAt,
			"ended_by": endedBy,
			"duration": 0,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *callRepository) Complete(ctx context.Context, callID uuid.UUID, endedAt time.Time, duration int, endedBy uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("id = ? AND status = ?", callID, model.CallStatusOngoing).
		Updates(map[string]interface{}{
			"status":   model.CallStatusCompleted,
			"ended_at": endedAt,
			"ended_by": endedBy,
			"duration": duration,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *callRepository) FindStaleUnanswered(ctx context.Context, startedBefore time.Time, limit int) ([]model.Call, error) {
	var calls []model.Call
	err := r.db.WithContext(ctx).
		Where("status = ? AND connected_at IS NULL AND started_at < ?", model.CallStatusOngoing, startedBefore).
		Order("started_at ASC").
		Limit(limit).
		Find(&calls).Error
	return calls, err
}

func (r *callRepository) MarkMissed(ctx context.Context, callID uuid.UUID, endedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("id = ? AND status = ? AND connected_at IS NULL", callID, model.CallStatusOngoing).
		Updates(map[string]interface{}{
			"status":   model.CallStatusMissed,
			"ended_at": endedAt,
		})
	return res.RowsAffected > 0, res.Error
}
