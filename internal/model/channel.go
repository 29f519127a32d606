// internal/model/channel.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel is used here only as a fan-out membership source.
type Channel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(100);not null" json:"name"`
	AdminID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"adminId"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
	Members   []ChannelMember `gorm:"foreignKey:ChannelID" json:"members,omitempty"`
}

func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Channel) TableName() string {
	return "channels"
}

// RecipientIDs returns members plus the admin, deduplicated, in membership order.
func (c *Channel) RecipientIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(c.Members)+1)
	ids := make([]uuid.UUID, 0, len(c.Members)+1)
	for _, m := range c.Members {
		if !seen[m.UserID] {
			seen[m.UserID] = true
			ids = append(ids, m.UserID)
		}
	}
	if c.AdminID != uuid.Nil && !seen[c.AdminID] {
		ids = append(ids, c.AdminID)
	}
	return ids
}

type ChannelMember struct {
	ChannelID uuid.UUID `gorm:"type:uuid;primaryKey" json:"channelId"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"userId"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (ChannelMember) TableName() string {
	return "channel_members"
}

// ChannelMessage is the denormalized per-channel message index.
type ChannelMessage struct {
	ChannelID uuid.UUID `gorm:"type:uuid;primaryKey" json:"channelId"`
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey" json:"messageId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ChannelMessage) TableName() string {
	return "channel_messages"
}
