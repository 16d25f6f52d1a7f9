package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/event-capacity-reservation/internal/config"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
	"github.com/iliyamo/event-capacity-reservation/internal/queue"
	"github.com/iliyamo/event-capacity-reservation/internal/repository"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID string
}

// Authorizer decides who may act as host for an event.
type Authorizer interface {
	CanManage(actor Actor, event *model.Event) bool
}

// HostAuthorizer lets only the event's host manage it.
type HostAuthorizer struct{}

func (HostAuthorizer) CanManage(actor Actor, event *model.Event) bool {
	return actor.UserID != "" && actor.UserID == event.HostID
}

// RequestService exposes the guest and host operations on join requests.
// Each operation commits before notifying; a failed operation notifies
// nobody.
type RequestService struct {
	events       *repository.EventRepo
	requests     *repository.JoinRequestRepo
	participants *repository.ParticipantRepo
	availability *repository.AvailabilityRepo
	waitlist     *WaitlistManager
	auth         Authorizer
	notify       dispatcher

	holdFor      time.Duration
	extendBy     time.Duration
	maxPartySize int
	now          func() time.Time
}

// Option customises a RequestService.
type Option func(*RequestService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *RequestService) { s.now = now }
}

// WithAuthorizer replaces the default HostAuthorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(s *RequestService) { s.auth = a }
}

// NewRequestService wires the service to its stores and notifier.
func NewRequestService(
	events *repository.EventRepo,
	requests *repository.JoinRequestRepo,
	participants *repository.ParticipantRepo,
	availability *repository.AvailabilityRepo,
	notifier Notifier,
	cfg config.ReservationConfig,
	opts ...Option,
) *RequestService {
	s := &RequestService{
		events:       events,
		requests:     requests,
		participants: participants,
		availability: availability,
		waitlist:     NewWaitlistManager(requests),
		auth:         HostAuthorizer{},
		notify:       dispatcher{notifier: notifier, timeout: cfg.NotifyTimeout},
		holdFor:      cfg.HoldDuration(),
		extendBy:     cfg.ExtendDuration(),
		maxPartySize: cfg.MaxPartySize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest places a pending request for actor and holds its seats.
func (s *RequestService) CreateRequest(ctx context.Context, actor Actor, eventID string, partySize int, note *string) (*model.JoinRequest, error) {
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(eventID) == "" {
		return nil, invalid("event_id", "required")
	}
	if partySize < 1 {
		return nil, invalid("party_size", "must be at least 1")
	}
	if s.maxPartySize > 0 && partySize > s.maxPartySize {
		return nil, invalid("party_size", "exceeds the maximum party size")
	}
	if note != nil {
		if utf8.RuneCountInString(*note) > model.MaxNoteLength {
			return nil, invalid("note", "too long")
		}
		if strings.TrimSpace(*note) == "" {
			note = nil
		}
	}

	req, err := s.requests.Create(ctx, repository.NewJoinRequest{
		EventID:   eventID,
		UserID:    actor.UserID,
		PartySize: partySize,
		Note:      note,
		HoldFor:   s.holdFor,
	}, s.now())
	if err != nil {
		return nil, err
	}
	n := notificationFor(queue.KindRequestCreated, model.JoinRequest{}, *req)
	s.notify.send(ctx, n)
	return req, nil
}

// Approve confirms a pending or waitlisted request.  An empty expected
// status means the status the request had when the host loaded it.
func (s *RequestService) Approve(ctx context.Context, actor Actor, eventID, requestID string, expected model.RequestStatus) (*model.JoinRequest, error) {
	return s.decide(ctx, actor, eventID, requestID, expected, model.StatusApproved)
}

// Decline rejects a pending or waitlisted request.
func (s *RequestService) Decline(ctx context.Context, actor Actor, eventID, requestID string, expected model.RequestStatus) (*model.JoinRequest, error) {
	return s.decide(ctx, actor, eventID, requestID, expected, model.StatusDeclined)
}

// Waitlist moves a pending request to the tail of the waitlist.
func (s *RequestService) Waitlist(ctx context.Context, actor Actor, eventID, requestID string) (*model.JoinRequest, error) {
	return s.decide(ctx, actor, eventID, requestID, model.StatusPending, model.StatusWaitlisted)
}

func (s *RequestService) decide(ctx context.Context, actor Actor, eventID, requestID string, expected, to model.RequestStatus) (*model.JoinRequest, error) {
	if _, err := s.manage(ctx, actor, eventID); err != nil {
		return nil, err
	}
	if expected != "" && !expected.Valid() {
		return nil, invalid("expected_status", "unknown status")
	}
	cur, err := s.load(ctx, eventID, requestID)
	if err != nil {
		return nil, err
	}
	if expected == "" {
		expected = cur.Status
	}
	return s.transition(ctx, eventID, requestID, expected, to)
}

// CancelOwn withdraws the actor's own pending request while its hold is live.
func (s *RequestService) CancelOwn(ctx context.Context, actor Actor, eventID, requestID string) (*model.JoinRequest, error) {
	cur, err := s.load(ctx, eventID, requestID)
	if err != nil {
		return nil, err
	}
	if actor.UserID == "" || cur.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	return s.transition(ctx, eventID, requestID, model.StatusPending, model.StatusCancelled)
}

func (s *RequestService) transition(ctx context.Context, eventID, requestID string, expected, to model.RequestStatus) (*model.JoinRequest, error) {
	var res *repository.TransitionResult
	err := s.requests.InEventTx(ctx, eventID, func(tx *repository.EventTx) error {
		out, err := tx.Transition(requestID, expected, to, s.now())
		res = out
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.send(ctx, transitionNotification(res))
	return &res.After, nil
}

// MaxHoldExtension bounds a single hold extension.
const MaxHoldExtension = 24 * time.Hour

// ExtendHold lengthens a pending request's hold.  by <= 0 uses the
// configured extension.
func (s *RequestService) ExtendHold(ctx context.Context, actor Actor, eventID, requestID string, by time.Duration) (*model.JoinRequest, error) {
	if _, err := s.manage(ctx, actor, eventID); err != nil {
		return nil, err
	}
	if by <= 0 {
		by = s.extendBy
	}
	if by > MaxHoldExtension {
		return nil, invalid("minutes", "extension longer than a day")
	}
	if _, err := s.load(ctx, eventID, requestID); err != nil {
		return nil, err
	}
	var res *repository.TransitionResult
	err := s.requests.InEventTx(ctx, eventID, func(tx *repository.EventTx) error {
		out, err := tx.ExtendHold(requestID, by, s.now())
		res = out
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.send(ctx, transitionNotification(res))
	return &res.After, nil
}

// Reorder moves a waitlisted request to pos (1-based).  Every request whose
// position changed is notified.
func (s *RequestService) Reorder(ctx context.Context, actor Actor, eventID, requestID string, pos int) ([]model.JoinRequest, error) {
	if _, err := s.manage(ctx, actor, eventID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(requestID) == "" {
		return nil, invalid("request_id", "required")
	}
	out, err := s.waitlist.Reorder(ctx, eventID, requestID, pos, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrInvalidPosition) {
			return nil, invalid("position", err.Error())
		}
		return nil, err
	}
	for _, m := range out.Moved {
		s.notify.send(ctx, notificationFor(queue.KindWaitlistReordered, m.Before, m.After))
	}
	return out.Waitlist, nil
}

// Promote approves waitlisted requests in order while they fit.  limit <= 0
// means no limit.
func (s *RequestService) Promote(ctx context.Context, actor Actor, eventID string, limit int) ([]model.JoinRequest, error) {
	if _, err := s.manage(ctx, actor, eventID); err != nil {
		return nil, err
	}
	return s.promote(ctx, eventID, limit)
}

func (s *RequestService) promote(ctx context.Context, eventID string, limit int) ([]model.JoinRequest, error) {
	promoted, err := s.waitlist.Promote(ctx, eventID, limit, s.now())
	if err != nil {
		return nil, err
	}
	out := make([]model.JoinRequest, 0, len(promoted))
	for i := range promoted {
		s.notify.send(ctx, transitionNotification(&promoted[i]))
		out = append(out, promoted[i].After)
	}
	return out, nil
}

// RemoveParticipant frees a confirmed participant's seats and then promotes
// from the waitlist.  It returns the promoted requests.
func (s *RequestService) RemoveParticipant(ctx context.Context, actor Actor, eventID, userID string) ([]model.JoinRequest, error) {
	if _, err := s.manage(ctx, actor, eventID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id", "required")
	}
	if err := s.participants.Remove(ctx, eventID, userID); err != nil {
		return nil, err
	}
	return s.promote(ctx, eventID, 0)
}

// Availability reports the event's capacity figures.  Anyone may read it.
func (s *RequestService) Availability(ctx context.Context, eventID string) (model.Availability, error) {
	if strings.TrimSpace(eventID) == "" {
		return model.Availability{}, invalid("event_id", "required")
	}
	return s.availability.Get(ctx, eventID, s.now())
}

// Get returns a request to its owner or the event's host.
func (s *RequestService) Get(ctx context.Context, actor Actor, eventID, requestID string) (*model.JoinRequest, error) {
	req, err := s.load(ctx, eventID, requestID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != "" && req.UserID == actor.UserID {
		return req, nil
	}
	if _, err := s.manage(ctx, actor, eventID); err != nil {
		return nil, err
	}
	return req, nil
}

// ListForEvent returns the event's requests for its host, optionally
// filtered by status.
func (s *RequestService) ListForEvent(ctx context.Context, actor Actor, eventID string, statuses ...model.RequestStatus) ([]model.JoinRequest, error) {
	if _, err := s.manage(ctx, actor, eventID); err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, invalid("status", "unknown status "+string(st))
		}
	}
	return s.requests.ListByEvent(ctx, eventID, statuses...)
}

// manage loads the event and checks that actor may act as its host.
func (s *RequestService) manage(ctx context.Context, actor Actor, eventID string) (*model.Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, invalid("event_id", "required")
	}
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanManage(actor, ev) {
		return nil, ErrForbidden
	}
	return ev, nil
}

// load fetches a request and checks it belongs to eventID.
func (s *RequestService) load(ctx context.Context, eventID, requestID string) (*model.JoinRequest, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, invalid("event_id", "required")
	}
	if strings.TrimSpace(requestID) == "" {
		return nil, invalid("request_id", "required")
	}
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.EventID != eventID {
		return nil, repository.ErrRequestNotFound
	}
	return req, nil
}
