package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses one inbound frame into its concrete event type. Frames with
// an unknown name wrap ErrUnknownEvent, undecodable ones ErrMalformedPayload.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var in Inbound
	switch env.Event {
	case EventSendMessage:
		in = &SendMessage{}
	case EventSendChannelMessage:
		in = &SendChannelMessage{}
	case EventConfirmRead:
		in = &ConfirmRead{}
	case EventTyping:
		in = &Typing{}
	case EventStopTyping:
		in = &Typing{Stop: true}
	case EventCallInitiate:
		in = &CallInitiate{}
	case EventCallAccept:
		in = &CallAccept{}
	case EventCallReject:
		in = &CallReject{}
	case EventCallEnd:
		in = &CallEnd{}
	case EventCallOffer:
		in = &CallDescription{}
	case EventCallAnswer:
		in = &CallDescription{Answer: true}
	case EventCallICECandidate:
		in = &CallCandidate{}
	case EventCallICECandidates:
		in = &CallCandidates{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, env.Event, err)
		}
	}
	return in, nil
}
