package realtime

import (
	"encoding/json"
	"time"

	"chat-realtime-service/internal/model"

	"github.com/google/uuid"
)

type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Email     string    `json:"email,omitempty"`
	Image     string    `json:"image,omitempty"`
}

func NewUserSummary(u *model.User) UserSummary {
	return UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Image:     u.Image,
	}
}

// MessageView is a message with sender and receiver identities projected in.
type MessageView struct {
	ID                 uuid.UUID             `json:"id"`
	Sender             UserSummary           `json:"sender"`
	Receiver           *UserSummary          `json:"receiver,omitempty"`
	ChannelID          *uuid.UUID            `json:"channelId,omitempty"`
	MessageType        model.MessageType     `json:"messageType"`
	Content            string                `json:"content,omitempty"`
	FileURL            *string               `json:"fileUrl,omitempty"`
	Status             model.MessageStatus   `json:"status"`
	ReplyTo            *model.ReplyReference `json:"replyTo,omitempty"`
	CallID             *string               `json:"callId,omitempty"`
	CallStatus         string                `json:"callStatus,omitempty"`
	CallDuration       int                   `json:"callDuration,omitempty"`
	DeletedForEveryone bool                  `json:"deletedForEveryone"`
	CreatedAt          time.Time             `json:"createdAt"`
}

func NewMessageView(m *model.Message) MessageView {
	v := MessageView{
		ID:                 m.ID,
		Sender:             UserSummary{ID: m.SenderID},
		ChannelID:          m.ChannelID,
		MessageType:        m.MessageType,
		Content:            m.Content,
		FileURL:            m.FileURL,
		Status:             m.Status,
		CallID:             m.CallID,
		CallStatus:         m.CallStatus,
		CallDuration:       m.CallDuration,
		DeletedForEveryone: m.DeletedForEveryone,
		CreatedAt:          m.CreatedAt,
	}
	if m.Sender != nil {
		v.Sender = NewUserSummary(m.Sender)
	}
	switch {
	case m.Receiver != nil:
		r := NewUserSummary(m.Receiver)
		v.Receiver = &r
	case m.ReceiverID != nil:
		v.Receiver = &UserSummary{ID: *m.ReceiverID}
	}
	if m.ReplyTo.ID != nil {
		reply := m.ReplyTo
		v.ReplyTo = &reply
	}
	return v
}

type StatusUpdate struct {
	SenderID   *uuid.UUID          `json:"senderId,omitempty"`
	ReceiverID uuid.UUID           `json:"receiverId"`
	Status     model.MessageStatus `json:"status"`
}

type IncomingCall struct {
	CallID      string         `json:"callId"`
	CallerID    uuid.UUID      `json:"callerId"`
	CallType    model.CallType `json:"callType"`
	CallerName  string         `json:"callerName"`
	CallerImage string         `json:"callerImage,omitempty"`
	CallerEmail string         `json:"callerEmail,omitempty"`
}

// CallInitiated answers call:initiate on the caller's own connection.
type CallInitiated struct {
	CallID       string         `json:"callId"`
	CallRecordID uuid.UUID      `json:"callRecordId"`
	ReceiverID   uuid.UUID      `json:"receiverId"`
	CallType     model.CallType `json:"callType"`
}

// CallTiming is the payload of call-accepted and call-connected. Clients
// derive elapsed time from ServerNow - ConnectedAt, not from their own clock.
type CallTiming struct {
	CallID      string    `json:"callId"`
	ConnectedAt time.Time `json:"connectedAt"`
	ServerNow   time.Time `json:"serverNow"`
}

type CallRejected struct {
	CallID string `json:"callId"`
}

type CallEnded struct {
	From uuid.UUID `json:"from"`
}

type DescriptionRelay struct {
	Description json.RawMessage `json:"description"`
	From        uuid.UUID       `json:"from"`
}

type CandidateRelay struct {
	Candidate json.RawMessage `json:"candidate"`
	From      uuid.UUID       `json:"from"`
}

type CandidatesRelay struct {
	Candidates []json.RawMessage `json:"candidates"`
	From       uuid.UUID         `json:"from"`
}

type TypingNotice struct {
	ChatType   string      `json:"chatType"`
	SenderID   uuid.UUID   `json:"senderId"`
	Sender     UserSummary `json:"sender"`
	ReceiverID *uuid.UUID  `json:"receiverId,omitempty"`
	ChannelID  *uuid.UUID  `json:"channelId,omitempty"`
}

type LastSeen struct {
	UserID   uuid.UUID `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}
