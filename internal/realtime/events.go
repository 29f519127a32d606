// Package realtime defines the websocket wire protocol: event names, the
// frame envelope, inbound event types and outbound payloads.
package realtime

// Client -> server
const (
	EventSendMessage        = "sendMessage"
	EventSendChannelMessage = "send-channel-message"
	EventConfirmRead        = "confirm-read"
	EventTyping             = "typing"
	EventStopTyping         = "stop-typing"
	EventCallInitiate       = "call:initiate"
	EventCallAccept         = "call:accept"
	EventCallReject         = "call:reject"
	EventCallEnd            = "call:end"
	EventCallOffer          = "call:offer"
	EventCallAnswer         = "call:answer"
	EventCallICECandidate   = "call:ice-candidate"
	EventCallICECandidates  = "call:ice-candidates"
)

// Server -> client. call:end, call:offer, call:answer and the ICE events
// reuse the inbound names.
const (
	EventOnlineUsers           = "onlineUsers"
	EventNewDMContact          = "new-dm-contact"
	EventReceiveMessage        = "receiveMessage"
	EventReceiveChannelMessage = "receive-channel-message"
	EventMessageStatusUpdate   = "message-status-update"
	EventIncomingCall          = "incoming-call"
	EventCallInitiated         = "call:initiated"
	EventCallAccepted          = "call-accepted"
	EventCallConnected         = "call-connected"
	EventCallRejected          = "call-rejected"
	EventUserLastSeen          = "user-last-seen"
	EventErrorMessage          = "errorMessage"
)

const (
	ChatTypeContact = "contact"
	ChatTypeChannel = "channel"
)
