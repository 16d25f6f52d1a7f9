package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-capacity-reservation/internal/database"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
)

var testNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type testStore struct {
	db           *sql.DB
	events       *EventRepo
	participants *ParticipantRepo
	requests     *JoinRequestRepo
	availability *AvailabilityRepo
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, d, err := database.OpenSQLite(filepath.Join(t.TempDir(), "reservations.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &testStore{
		db:           db,
		events:       NewEventRepo(db, d),
		participants: NewParticipantRepo(db, d),
		requests:     NewJoinRequestRepo(db, d),
		availability: NewAvailabilityRepo(db, d),
	}
}

func capacity(n int) *int { return &n }

func (s *testStore) createEvent(t *testing.T, total *int) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:            uuid.NewString(),
		HostID:        "host-1",
		CapacityTotal: total,
		Status:        model.EventPublished,
		CreatedAt:     testNow,
	}
	if err := s.events.Create(context.Background(), e); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func (s *testStore) seat(t *testing.T, eventID string, party int) {
	t.Helper()
	p := &model.Participant{
		EventID:   eventID,
		UserID:    "seated-" + uuid.NewString(),
		Status:    model.ParticipantAccepted,
		PartySize: party,
		CreatedAt: testNow,
	}
	if err := s.participants.Insert(context.Background(), p); err != nil {
		t.Fatalf("insert participant: %v", err)
	}
}

func (s *testStore) request(t *testing.T, eventID, userID string, party int, at time.Time) *model.JoinRequest {
	t.Helper()
	req, err := s.requests.Create(context.Background(), NewJoinRequest{
		EventID:   eventID,
		UserID:    userID,
		PartySize: party,
		HoldFor:   30 * time.Minute,
	}, at)
	if err != nil {
		t.Fatalf("create request for %s: %v", userID, err)
	}
	return req
}

func (s *testStore) waitlisted(t *testing.T, eventID, userID string, party int, at time.Time) *model.JoinRequest {
	t.Helper()
	req := s.request(t, eventID, userID, party, at)
	res, err := s.requests.Transition(context.Background(), req.ID, model.StatusPending, model.StatusWaitlisted, at)
	if err != nil {
		t.Fatalf("waitlist %s: %v", userID, err)
	}
	return &res.After
}

func (s *testStore) countParticipants(t *testing.T, eventID string) int {
	t.Helper()
	ps, err := s.participants.ListByEvent(context.Background(), eventID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	n := 0
	for _, p := range ps {
		if p.Status == model.ParticipantAccepted {
			n++
		}
	}
	return n
}
