// internal/model/call.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// CallStatus transitions: ongoing -> {rejected, completed, missed}. There is
// no path back to ongoing.
type CallStatus string

const (
	CallStatusOngoing   CallStatus = "ongoing"
	CallStatusMissed    CallStatus = "missed"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusCompleted CallStatus = "completed"
)

type Call struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CallKey     string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"callId"`
	CallerID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"callerId"`
	ReceiverID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"receiverId"`
	CallType    CallType   `gorm:"type:varchar(10);not null" json:"callType"`
	Status      CallStatus `gorm:"type:varchar(20);not null;default:'ongoing';index" json:"status"`
	StartedAt   time.Time  `gorm:"not null;index" json:"startedAt"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	Duration    int        `gorm:"default:0" json:"duration"`
	EndedBy     *uuid.UUID `gorm:"type:uuid" json:"endedBy,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (c *Call) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CallKey == "" {
		c.CallKey = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = CallStatusOngoing
	}
	return nil
}

func (Call) TableName() string {
	return "calls"
}

// CallDuration returns whole seconds between connectedAt and endedAt, or 0
// when the call never connected.
func CallDuration(connectedAt *time.Time, endedAt time.Time) int {
	if connectedAt == nil {
		return 0
	}
	d := endedAt.Sub(*connectedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

type CallRefKind int

const (
	CallRefInternal CallRefKind = iota + 1
	CallRefExternal
)

// CallRef identifies a call either by its primary key or by the external
// key handed to clients.
type CallRef struct {
	Kind CallRefKind
	ID   uuid.UUID
	Key  string
}

func InternalCallRef(id uuid.UUID) CallRef {
	return CallRef{Kind: CallRefInternal, ID: id}
}

func ExternalCallRef(key string) CallRef {
	return CallRef{Kind: CallRefExternal, Key: key}
}

func (r CallRef) IsZero() bool {
	switch r.Kind {
	case CallRefInternal:
		return r.ID == uuid.Nil
	case CallRefExternal:
		return r.Key == ""
	}
	return true
}

func (r CallRef) String() string {
	if r.Kind == CallRefInternal {
		return r.ID.String()
	}
	return r.Key
}
