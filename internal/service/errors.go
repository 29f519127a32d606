package service

import "errors"

var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidCallType  = errors.New("invalid call type")
	ErrChannelNotFound  = errors.New("channel not found")

	// Clients may send text or file messages. Call summaries are written by
	// the server only.
	ErrInvalidMessageType = errors.New("invalid message type")
)
