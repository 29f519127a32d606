package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-realtime-service/internal/client"
	"chat-realtime-service/internal/metrics"
	"chat-realtime-service/internal/model"
	"chat-realtime-service/internal/presence"
	"chat-realtime-service/internal/push"
	"chat-realtime-service/internal/realtime"
	"chat-realtime-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CallService brokers call setup between two parties. Offers, answers and
// ICE candidates are relayed untouched and in order; glare handling is left
// to the clients. Only the call record carries state across rounds.
type CallService interface {
	Initiate(ctx context.Context, caller realtime.UserSummary, receiverID uuid.UUID, callType model.CallType) (*model.Call, error)
	Accept(ctx context.Context, accepterID uuid.UUID, ref model.CallRef, callerID uuid.UUID) error
	Reject(ctx context.Context, rejecterID uuid.UUID, ref model.CallRef, callerID uuid.UUID) error
	End(ctx context.Context, enderID uuid.UUID, ref model.CallRef, to uuid.UUID) error

	RelayDescription(from uuid.UUID, in *realtime.CallDescription)
	RelayCandidate(from uuid.UUID, in *realtime.CallCandidate)
	RelayCandidates(from uuid.UUID, in *realtime.CallCandidates)

	// ExpireUnanswered marks calls nobody picked up within the cutoff as
	// missed and returns how many were expired.
	ExpireUnanswered(ctx context.Context, startedBefore time.Time, limit int) (int, error)
}

type callService struct {
	callRepo    repository.CallRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	registry    presence.Registry
	emitter     Emitter
	push        *push.Dispatcher
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewCallService(
	callRepo repository.CallRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	registry presence.Registry,
	emitter Emitter,
	dispatcher *push.Dispatcher,
	logger *zap.Logger,
	m *metrics.Metrics,
) CallService {
	return &callService{
		callRepo:    callRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		registry:    registry,
		emitter:     emitter,
		push:        dispatcher,
		logger:      logger,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *callService) Initiate(ctx context.Context, caller realtime.UserSummary, receiverID uuid.UUID, callType model.CallType) (*model.Call, error) {
	if caller.ID == uuid.Nil || receiverID == uuid.Nil {
		return nil, ErrInvalidRecipient
	}
	if callType != model.CallTypeAudio && callType != model.CallTypeVideo {
		return nil, ErrInvalidCallType
	}

	call := &model.Call{
		CallerID:   caller.ID,
		ReceiverID: receiverID,
		CallType:   callType,
		Status:     model.CallStatusOngoing,
		StartedAt:  s.now(),
	}
	if err := s.callRepo.Create(ctx, call); err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}
	s.metrics.RecordCallTransition(string(model.CallStatusOngoing))

	callerName := displayName(caller)
	incoming := realtime.IncomingCall{
		CallID:      call.CallKey,
		CallerID:    caller.ID,
		CallType:    callType,
		CallerName:  callerName,
		CallerImage: caller.Image,
		CallerEmail: caller.Email,
	}

	if conns := s.registry.ConnectionsFor(receiverID); len(conns) > 0 {
		s.emitter.EmitTo(conns, realtime.EventIncomingCall, incoming)
		return call, nil
	}

	callKey := call.CallKey
	s.push.Dispatch(metrics.KindCall, func(ctx context.Context) (client.PushMessage, error) {
		tokens, err := s.userRepo.PushTokens(ctx, receiverID)
		if err != nil {
			return client.PushMessage{}, err
		}
		return client.PushMessage{
			Tokens: tokens,
			Title:  callerName,
			Body:   fmt.Sprintf("Incoming %s call", callType),
			Data: map[string]string{
				"type":     "call",
				"callId":   callKey,
				"callerId": caller.ID.String(),
				"callType": string(callType),
			},
		}, nil
	})

	return call, nil
}

// Accept is safe to repeat: only the first accept stamps connected_at and
// every accept re-announces that same timestamp.
func (s *callService) Accept(ctx context.Context, accepterID uuid.UUID, ref model.CallRef, callerID uuid.UUID) error {
	// postgres keeps microseconds; announce exactly what a later read returns
	now := s.now().Truncate(time.Microsecond)

	call, err := s.findCall(ctx, ref)
	if err != nil {
		return err
	}
	if call == nil {
		// the record is not findable yet; trust the payload
		if callerID == uuid.Nil {
			return nil
		}
		s.announceConnected(ref.String(), now, now, callerID, accepterID)
		return nil
	}
	if call.Status != model.CallStatusOngoing {
		return nil
	}

	stamped, err := s.callRepo.SetConnectedAt(ctx, call.ID, now)
	if err != nil {
		return fmt.Errorf("failed to set connected_at: %w", err)
	}

	connectedAt := now
	if stamped {
		s.metrics.RecordCallTransition("connected")
	} else {
		current, err := s.callRepo.Find(ctx, model.InternalCallRef(call.ID))
		if err != nil {
			return fmt.Errorf("failed to reload call: %w", err)
		}
		if current.ConnectedAt == nil {
			// ended between the lookup and the update
			return nil
		}
		connectedAt = *current.ConnectedAt
	}

	s.announceConnected(call.CallKey, connectedAt, now, call.CallerID, call.ReceiverID)
	return nil
}

func (s *callService) announceConnected(callKey string, connectedAt, serverNow time.Time, callerID, receiverID uuid.UUID) {
	timing := realtime.CallTiming{
		CallID:      callKey,
		ConnectedAt: connectedAt,
		ServerNow:   serverNow,
	}
	emitToUsers(s.emitter, s.registry, realtime.EventCallAccepted, timing, callerID)
	emitToUsers(s.emitter, s.registry, realtime.EventCallConnected, timing, callerID)
	if receiverID != callerID {
		emitToUsers(s.emitter, s.registry, realtime.EventCallConnected, timing, receiverID)
	}
}

func (s *callService) Reject(ctx context.Context, rejecterID uuid.UUID, ref model.CallRef, callerID uuid.UUID) error {
	call, err := s.findCall(ctx, ref)
	if err != nil {
		return err
	}
	if call == nil {
		emitToUsers(s.emitter, s.registry, realtime.EventCallRejected, realtime.CallRejected{CallID: ref.String()}, callerID)
		return nil
	}

	endedBy := rejecterID
	if endedBy == uuid.Nil {
		endedBy = call.ReceiverID
	}
	rejected, err := s.callRepo.Reject(ctx, call.ID, s.now(), endedBy)
	if err != nil {
		return fmt.Errorf("failed to reject call: %w", err)
	}
	if !rejected {
		return nil
	}
	s.metrics.RecordCallTransition(string(model.CallStatusRejected))

	emitToUsers(s.emitter, s.registry, realtime.EventCallRejected, realtime.CallRejected{CallID: call.CallKey}, call.CallerID)
	return nil
}

// End tells the other party first so media teardown never waits on the
// database. Ending a call that is no longer ongoing changes nothing.
func (s *callService) End(ctx context.Context, enderID uuid.UUID, ref model.CallRef, to uuid.UUID) error {
	emitToUsers(s.emitter, s.registry, realtime.EventCallEnd, realtime.CallEnded{From: enderID}, to)

	call, err := s.findCall(ctx, ref)
	if err != nil || call == nil {
		return err
	}

	endedBy := enderID
	if endedBy == uuid.Nil {
		endedBy = call.CallerID
		if to == call.CallerID {
			endedBy = call.ReceiverID
		}
	}

	endedAt := s.now()
	duration := model.CallDuration(call.ConnectedAt, endedAt)
	completed, err := s.callRepo.Complete(ctx, call.ID, endedAt, duration, endedBy)
	if err != nil {
		return fmt.Errorf("failed to complete call: %w", err)
	}
	if !completed {
		return nil
	}
	s.metrics.RecordCallTransition(string(model.CallStatusCompleted))

	return s.appendSummary(ctx, call, model.CallStatusCompleted, duration)
}

func (s *callService) ExpireUnanswered(ctx context.Context, startedBefore time.Time, limit int) (int, error) {
	calls, err := s.callRepo.FindStaleUnanswered(ctx, startedBefore, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find unanswered calls: %w", err)
	}

	expired := 0
	for i := range calls {
		call := &calls[i]
		missed, err := s.callRepo.MarkMissed(ctx, call.ID, s.now())
		if err != nil {
			s.logger.Error("Failed to mark call missed",
				zap.String("callId", call.CallKey),
				zap.Error(err),
			)
			continue
		}
		if !missed {
			continue
		}
		expired++
		s.metrics.RecordCallTransition(string(model.CallStatusMissed))

		emitToUsers(s.emitter, s.registry, realtime.EventCallEnd, realtime.CallEnded{From: call.CallerID}, call.ReceiverID)
		emitToUsers(s.emitter, s.registry, realtime.EventCallEnd, realtime.CallEnded{From: call.ReceiverID}, call.CallerID)

		if err := s.appendSummary(ctx, call, model.CallStatusMissed, 0); err != nil {
			s.logger.Error("Failed to append missed call summary",
				zap.String("callId", call.CallKey),
				zap.Error(err),
			)
		}
	}
	return expired, nil
}

// appendSummary writes the call into the conversation history and pushes it
// to both parties' open conversations.
func (s *callService) appendSummary(ctx context.Context, call *model.Call, outcome model.CallStatus, duration int) error {
	callKey := call.CallKey
	receiverID := call.ReceiverID

	status := model.MessageStatusSent
	if s.registry.IsOnline(receiverID) {
		status = model.MessageStatusDelivered
	}

	summary := &model.Message{
		SenderID:     call.CallerID,
		ReceiverID:   &receiverID,
		MessageType:  model.MessageTypeCall,
		Content:      callSummaryText(call.CallType, outcome),
		Status:       status,
		CallID:       &callKey,
		CallStatus:   string(outcome),
		CallDuration: duration,
	}
	if err := s.messageRepo.Create(ctx, summary); err != nil {
		return fmt.Errorf("failed to create call summary: %w", err)
	}

	enriched, err := s.messageRepo.FindByIDWithUsers(ctx, summary.ID)
	if err != nil {
		return fmt.Errorf("failed to load call summary: %w", err)
	}
	emitToUsers(s.emitter, s.registry, realtime.EventReceiveMessage, realtime.NewMessageView(enriched), call.CallerID, call.ReceiverID)
	return nil
}

func (s *callService) RelayDescription(from uuid.UUID, in *realtime.CallDescription) {
	if in.To == uuid.Nil || len(in.Description) == 0 {
		return
	}
	emitToUsers(s.emitter, s.registry, in.Event(), realtime.DescriptionRelay{
		Description: in.Description,
		From:        from,
	}, in.To)
}

func (s *callService) RelayCandidate(from uuid.UUID, in *realtime.CallCandidate) {
	if in.To == uuid.Nil || len(in.Candidate) == 0 {
		return
	}
	emitToUsers(s.emitter, s.registry, realtime.EventCallICECandidate, realtime.CandidateRelay{
		Candidate: in.Candidate,
		From:      from,
	}, in.To)
}

func (s *callService) RelayCandidates(from uuid.UUID, in *realtime.CallCandidates) {
	if in.To == uuid.Nil || len(in.Candidates) == 0 {
		return
	}
	for _, c := range in.Candidates {
		if len(c) == 0 || string(c) == "null" {
			return
		}
	}
	emitToUsers(s.emitter, s.registry, realtime.EventCallICECandidates, realtime.CandidatesRelay{
		Candidates: in.Candidates,
		From:       from,
	}, in.To)
}

// findCall returns nil, nil when the reference matches nothing.
func (s *callService) findCall(ctx context.Context, ref model.CallRef) (*model.Call, error) {
	if ref.IsZero() {
		return nil, nil
	}
	call, err := s.callRepo.Find(ctx, ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Debug("Call not found", zap.String("callId", ref.String()))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find call: %w", err)
	}
	return call, nil
}

func displayName(u realtime.UserSummary) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.ID.String()
	}
	return name
}

func callSummaryText(callType model.CallType, outcome model.CallStatus) string {
	kind := "Audio call"
	if callType == model.CallTypeVideo {
		kind = "Video call"
	}
	if outcome == model.CallStatusMissed {
		return "Missed " + strings.ToLower(kind)
	}
	return kind
}
