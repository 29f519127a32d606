// internal/model/message.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeFile MessageType = "file"
	MessageTypeCall MessageType = "call"
)

// MessageStatus only ever moves forward: sent -> delivered -> read.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// ReplyReference is copied from the original message at send time and is
// never refreshed afterwards.
type ReplyReference struct {
	ID       *uuid.UUID  `gorm:"type:uuid" json:"id,omitempty"`
	SenderID *uuid.UUID  `gorm:"type:uuid" json:"senderId,omitempty"`
	Type     MessageType `gorm:"type:varchar(20)" json:"messageType,omitempty"`
	Preview  string      `gorm:"type:text" json:"preview,omitempty"`
}

type Message struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID    uuid.UUID     `gorm:"type:uuid;not null;index:idx_messages_pair" json:"senderId"`
	ReceiverID  *uuid.UUID    `gorm:"type:uuid;index:idx_messages_pair" json:"receiverId,omitempty"`
	ChannelID   *uuid.UUID    `gorm:"type:uuid;index" json:"channelId,omitempty"`
	MessageType MessageType   `gorm:"type:varchar(20);not null;default:'text'" json:"messageType"`
	Content     string        `gorm:"type:text" json:"content,omitempty"`
	FileURL     *string       `gorm:"type:text" json:"fileUrl,omitempty"`
	Status      MessageStatus `gorm:"type:varchar(20);not null;default:'sent';index" json:"status"`

	ReplyTo ReplyReference `gorm:"embedded;embeddedPrefix:reply_to_" json:"replyTo"`

	// call-summary rows
	CallID       *string `gorm:"type:varchar(64);index" json:"callId,omitempty"`
	CallStatus   string  `gorm:"type:varchar(20)" json:"callStatus,omitempty"`
	CallDuration int     `gorm:"default:0" json:"callDuration,omitempty"`

	HiddenFor          datatypes.JSONSlice[string] `json:"hiddenFor,omitempty"`
	DeletedForEveryone bool                        `gorm:"default:false" json:"deletedForEveryone"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"-"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"-"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MessageStatusSent
	}
	if m.MessageType == "" {
		m.MessageType = MessageTypeText
	}
	return nil
}

func (Message) TableName() string {
	return "messages"
}
