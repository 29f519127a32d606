package websocket

import (
	"context"
	"errors"
	"time"

	"chat-realtime-service/internal/metrics"
	"chat-realtime-service/internal/realtime"
	"chat-realtime-service/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	eventTimeout = 10 * time.Second

	sendFailedText = "Failed to send message"
)

// Dispatcher decodes inbound frames and routes each event to its service.
// Every event is a terminal error boundary: failures are logged, and only
// message sends report back to the originating connection.
type Dispatcher struct {
	hub      *Hub
	delivery service.DeliveryService
	status   service.StatusService
	typing   service.TypingService
	calls    service.CallService
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(
	hub *Hub,
	delivery service.DeliveryService,
	status service.StatusService,
	typing service.TypingService,
	calls service.CallService,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		hub:      hub,
		delivery: delivery,
		status:   status,
		typing:   typing,
		calls:    calls,
		logger:   logger,
		metrics:  m,
	}
}

func (d *Dispatcher) Dispatch(client *Client, frame []byte) {
	in, err := realtime.Decode(frame)
	if err != nil {
		if errors.Is(err, realtime.ErrUnknownEvent) {
			d.metrics.RecordInboundEvent("", metrics.EventUnknown)
		} else {
			d.metrics.RecordInboundEvent("", metrics.EventMalformed)
		}
		d.logger.Debug("Dropping inbound frame", zap.String("connId", client.id), zap.Error(err))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Recovered from panic in event handler",
				zap.Any("panic", r),
				zap.String("event", in.Event()),
				zap.String("connId", client.id),
			)
		}
	}()

	d.metrics.RecordInboundEvent(in.Event(), metrics.EventHandled)

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch ev := in.(type) {
	case *realtime.SendMessage:
		d.handleSendMessage(ctx, client, ev)
	case *realtime.SendChannelMessage:
		d.handleSendChannelMessage(ctx, client, ev)
	case *realtime.ConfirmRead:
		d.handleConfirmRead(ctx, client, ev)
	case *realtime.Typing:
		d.handleTyping(ctx, client, ev)
	case *realtime.CallInitiate:
		d.handleCallInitiate(ctx, client, ev)
	case *realtime.CallAccept:
		if err := d.calls.Accept(ctx, client.userID, ev.Ref(), ev.CallerID); err != nil {
			d.logFailure(client, in, err)
		}
	case *realtime.CallReject:
		if err := d.calls.Reject(ctx, client.userID, ev.Ref(), ev.CallerID); err != nil {
			d.logFailure(client, in, err)
		}
	case *realtime.CallEnd:
		if err := d.calls.End(ctx, client.userID, ev.Ref(), ev.To); err != nil {
			d.logFailure(client, in, err)
		}
	case *realtime.CallDescription:
		if client.bound() {
			d.calls.RelayDescription(client.userID, ev)
		}
	case *realtime.CallCandidate:
		if client.bound() {
			d.calls.RelayCandidate(client.userID, ev)
		}
	case *realtime.CallCandidates:
		if client.bound() {
			d.calls.RelayCandidates(client.userID, ev)
		}
	}
}

// senderOf prefers the identity bound at handshake over the one a payload claims.
func senderOf(client *Client, claimed uuid.UUID) uuid.UUID {
	if client.bound() {
		return client.userID
	}
	return claimed
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, client *Client, ev *realtime.SendMessage) {
	_, err := d.delivery.SendDirectMessage(ctx, senderOf(client, ev.Sender), service.DirectMessageInput{
		ReceiverID:  ev.Receiver,
		Content:     ev.Content,
		MessageType: ev.MessageType,
		FileURL:     ev.FileURL,
		ReplyTo:     ev.ReplyTo,
	})
	if err != nil {
		d.logFailure(client, ev, err)
		d.hub.EmitTo([]string{client.id}, realtime.EventErrorMessage, sendFailedText)
	}
}

func (d *Dispatcher) handleSendChannelMessage(ctx context.Context, client *Client, ev *realtime.SendChannelMessage) {
	_, err := d.delivery.SendChannelMessage(ctx, senderOf(client, ev.Sender), service.ChannelMessageInput{
		ChannelID:   ev.ChannelID,
		Content:     ev.Content,
		MessageType: ev.MessageType,
		FileURL:     ev.FileURL,
		ReplyTo:     ev.ReplyTo,
	})
	if err == nil {
		return
	}
	d.logFailure(client, ev, err)
	if !errors.Is(err, service.ErrChannelNotFound) {
		d.hub.EmitTo([]string{client.id}, realtime.EventErrorMessage, sendFailedText)
	}
}

func (d *Dispatcher) handleConfirmRead(ctx context.Context, client *Client, ev *realtime.ConfirmRead) {
	viewer := senderOf(client, ev.UserID)
	if viewer == uuid.Nil || ev.SenderID == uuid.Nil {
		return
	}
	if _, err := d.status.MarkRead(ctx, viewer, ev.SenderID); err != nil {
		d.logFailure(client, ev, err)
	}
}

func (d *Dispatcher) handleTyping(ctx context.Context, client *Client, ev *realtime.Typing) {
	if !client.bound() {
		return
	}
	err := d.typing.Broadcast(ctx, client.summary, service.TypingInput{
		Stop:       ev.Stop,
		ChatType:   ev.ChatType,
		ReceiverID: ev.ReceiverID,
		ChannelID:  ev.ChannelID,
	})
	if err != nil {
		d.logFailure(client, ev, err)
	}
}

func (d *Dispatcher) handleCallInitiate(ctx context.Context, client *Client, ev *realtime.CallInitiate) {
	if !client.bound() {
		return
	}
	call, err := d.calls.Initiate(ctx, client.summary, ev.ReceiverID, ev.CallType)
	if err != nil {
		d.logFailure(client, ev, err)
		return
	}
	d.hub.EmitTo([]string{client.id}, realtime.EventCallInitiated, realtime.CallInitiated{
		CallID:       call.CallKey,
		CallRecordID: call.ID,
		ReceiverID:   call.ReceiverID,
		CallType:     call.CallType,
	})
}

func (d *Dispatcher) logFailure(client *Client, in realtime.Inbound, err error) {
	d.logger.Error("Failed to handle event",
		zap.String("event", in.Event()),
		zap.String("connId", client.id),
		zap.String("userId", client.userID.String()),
		zap.Error(err),
	)
}
