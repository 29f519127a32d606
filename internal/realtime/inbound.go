package realtime

import (
	"encoding/json"

	"chat-realtime-service/internal/model"

	"github.com/google/uuid"
)

// Inbound is the closed set of client events. Only types in this package
// implement it.
type Inbound interface {
	Event() string
	inbound()
}

type SendMessage struct {
	Sender      uuid.UUID         `json:"sender"`
	Receiver    uuid.UUID         `json:"receiver"`
	Content     string            `json:"content,omitempty"`
	MessageType model.MessageType `json:"messageType"`
	FileURL     *string           `json:"fileUrl,omitempty"`
	ReplyTo     *uuid.UUID        `json:"replyTo,omitempty"`
}

type SendChannelMessage struct {
	Sender      uuid.UUID         `json:"sender"`
	ChannelID   uuid.UUID         `json:"channelId"`
	MessageType model.MessageType `json:"messageType"`
	Content     string            `json:"content,omitempty"`
	FileURL     *string           `json:"fileUrl,omitempty"`
	ReplyTo     *uuid.UUID        `json:"replyTo,omitempty"`
}

type ConfirmRead struct {
	UserID   uuid.UUID `json:"userId"`
	SenderID uuid.UUID `json:"senderId"`
}

// Typing covers both typing and stop-typing.
type Typing struct {
	Stop       bool       `json:"-"`
	ChatType   string     `json:"chatType"`
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
	ChannelID  *uuid.UUID `json:"channelId,omitempty"`
}

type CallInitiate struct {
	ReceiverID uuid.UUID      `json:"receiverId"`
	CallType   model.CallType `json:"callType"`
}

// CallTarget names a call by its external id, or by its record id when
// callRecordId is present.
type CallTarget struct {
	CallID       string     `json:"callId"`
	CallRecordID *uuid.UUID `json:"callRecordId,omitempty"`
}

func (t CallTarget) Ref() model.CallRef {
	if t.CallRecordID != nil {
		return model.InternalCallRef(*t.CallRecordID)
	}
	return model.ExternalCallRef(t.CallID)
}

type CallAccept struct {
	CallTarget
	CallerID uuid.UUID `json:"callerId"`
}

type CallReject struct {
	CallTarget
	CallerID uuid.UUID `json:"callerId"`
}

type CallEnd struct {
	CallTarget
	To uuid.UUID `json:"to"`
}

// CallDescription carries an SDP offer or answer verbatim.
type CallDescription struct {
	Answer      bool            `json:"-"`
	To          uuid.UUID       `json:"to"`
	Description json.RawMessage `json:"description"`
}

type CallCandidate struct {
	To        uuid.UUID       `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type CallCandidates struct {
	To         uuid.UUID         `json:"to"`
	Candidates []json.RawMessage `json:"candidates"`
}

func (*SendMessage) Event() string        { return EventSendMessage }
func (*SendChannelMessage) Event() string { return EventSendChannelMessage }
func (*ConfirmRead) Event() string        { return EventConfirmRead }
func (*CallInitiate) Event() string       { return EventCallInitiate }
func (*CallAccept) Event() string         { return EventCallAccept }
func (*CallReject) Event() string         { return EventCallReject }
func (*CallEnd) Event() string            { return EventCallEnd }
func (*CallCandidate) Event() string      { return EventCallICECandidate }
func (*CallCandidates) Event() string     { return EventCallICECandidates }

func (t *Typing) Event() string {
	if t.Stop {
		return EventStopTyping
	}
	return EventTyping
}

func (d *CallDescription) Event() string {
	if d.Answer {
		return EventCallAnswer
	}
	return EventCallOffer
}

func (*SendMessage) inbound()        {}
func (*SendChannelMessage) inbound() {}
func (*ConfirmRead) inbound()        {}
func (*Typing) inbound()             {}
func (*CallInitiate) inbound()       {}
func (*CallAccept) inbound()         {}
func (*CallReject) inbound()         {}
func (*CallEnd) inbound()            {}
func (*CallDescription) inbound()    {}
func (*CallCandidate) inbound()      {}
func (*CallCandidates) inbound()     {}
