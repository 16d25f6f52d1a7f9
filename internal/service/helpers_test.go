package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-capacity-reservation/internal/config"
	"github.com/iliyamo/event-capacity-reservation/internal/database"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
	"github.com/iliyamo/event-capacity-reservation/internal/queue"
	"github.com/iliyamo/event-capacity-reservation/internal/repository"
)

const hostID = "host-1"

type recorder struct {
	mu   sync.Mutex
	sent []queue.Notification
	err  error
}

func (r *recorder) Notify(_ context.Context, n queue.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recorder) kinds() []queue.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.Kind, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Kind)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	events       *repository.EventRepo
	requests     *repository.JoinRequestRepo
	participants *repository.ParticipantRepo
	svc          *RequestService
	sweeper      *HoldSweeper
	notes        *recorder
	clock        *clock
	host         Actor
}

func testPolicy() config.ReservationConfig {
	return config.ReservationConfig{
		HoldMinutes:   30,
		ExtendMinutes: 30,
		WarningLead:   10 * time.Minute,
		SweepInterval: time.Minute,
		MaxPartySize:  50,
		NotifyTimeout: time.Second,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, d, err := database.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, d); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		events:       repository.NewEventRepo(db, d),
		requests:     repository.NewJoinRequestRepo(db, d),
		participants: repository.NewParticipantRepo(db, d),
		notes:        &recorder{},
		clock:        &clock{now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)},
		host:         Actor{UserID: hostID},
	}
	env.svc = NewRequestService(env.events, env.requests, env.participants,
		repository.NewAvailabilityRepo(db, d), env.notes, testPolicy(), WithClock(env.clock.Now))
	env.sweeper = NewHoldSweeper(env.requests, env.notes, nil, testPolicy())
	env.sweeper.now = env.clock.Now
	return env
}

func (e *testEnv) event(t *testing.T, capacity int) string {
	t.Helper()
	ev := &model.Event{
		ID:            uuid.NewString(),
		HostID:        hostID,
		CapacityTotal: &capacity,
		Status:        model.EventPublished,
		CreatedAt:     e.clock.Now(),
	}
	if err := e.events.Create(context.Background(), ev); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev.ID
}

func (e *testEnv) request(t *testing.T, eventID, userID string, party int) *model.JoinRequest {
	t.Helper()
	req, err := e.svc.CreateRequest(context.Background(), Actor{UserID: userID}, eventID, party, nil)
	if err != nil {
		t.Fatalf("create request for %s: %v", userID, err)
	}
	return req
}

func (e *testEnv) waitlisted(t *testing.T, eventID, userID string, party int) *model.JoinRequest {
	t.Helper()
	req := e.request(t, eventID, userID, party)
	out, err := e.svc.Waitlist(context.Background(), e.host, eventID, req.ID)
	if err != nil {
		t.Fatalf("waitlist %s: %v", userID, err)
	}
	return out
}

func (e *testEnv) status(t *testing.T, requestID string) model.RequestStatus {
	t.Helper()
	req, err := e.requests.GetByID(context.Background(), requestID)
	if err != nil {
		t.Fatalf("get %s: %v", requestID, err)
	}
	return req.Status
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if ve.Field != field {
		t.Fatalf("validation field = %q, want %q", ve.Field, field)
	}
}
