package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/event-capacity-reservation/internal/model"
	"github.com/iliyamo/event-capacity-reservation/internal/queue"
	"github.com/iliyamo/event-capacity-reservation/internal/repository"
)

func TestCreateRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, 10)
	long := strings.Repeat("é", model.MaxNoteLength+1)
	ok := strings.Repeat("é", model.MaxNoteLength)

	tests := []struct {
		name  string
		event string
		party int
		note  *string
		field string
	}{
		{"zero party", ev, 0, nil, "party_size"},
		{"negative party", ev, -2, nil, "party_size"},
		{"party over maximum", ev, 51, nil, "party_size"},
		{"note too long", ev, 1, &long, "note"},
		{"missing event", " ", 1, nil, "event_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateRequest(context.Background(), Actor{UserID: "guest-1"}, tt.event, tt.party, tt.note)
			assertValidation(t, err, tt.field)
		})
	}
	if len(env.notes.kinds()) != 0 {
		t.Fatalf("notifications after rejected input: %v", env.notes.kinds())
	}

	req, err := env.svc.CreateRequest(context.Background(), Actor{UserID: "guest-1"}, ev, 1, &ok)
	if err != nil {
		t.Fatalf("500-rune note should be accepted: %v", err)
	}
	if req.Note == nil || *req.Note != ok {
		t.Fatal("note not stored")
	}
}

func TestCreateRequestNotifiesOnce(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 2)

	if got := env.notes.kinds(); len(got) != 1 || got[0] != queue.KindRequestCreated {
		t.Fatalf("notifications = %v, want [request.created]", got)
	}
	n := env.notes.sent[0]
	if n.RequestID != req.ID || n.NewStatus != "pending" || n.OldStatus != "" || n.HoldExpiresAt == nil {
		t.Fatalf("notification = %+v", n)
	}

	_, err := env.svc.CreateRequest(context.Background(), Actor{UserID: "guest-1"}, ev, 1, nil)
	if !errors.Is(err, repository.ErrDuplicateActiveRequest) {
		t.Fatalf("duplicate err = %v", err)
	}
	if len(env.notes.kinds()) != 1 {
		t.Fatal("duplicate request produced a notification")
	}
}

func TestCreateRequestRequiresActor(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, 10)
	if _, err := env.svc.CreateRequest(context.Background(), Actor{}, ev, 1, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestHostOperationsRequireHost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 1)
	env.notes.reset()
	guest := Actor{UserID: "guest-1"}

	calls := map[string]func() error{
		"approve":  func() error { _, err := env.svc.Approve(ctx, guest, ev, req.ID, ""); return err },
		"decline":  func() error { _, err := env.svc.Decline(ctx, guest, ev, req.ID, ""); return err },
		"waitlist": func() error { _, err := env.svc.Waitlist(ctx, guest, ev, req.ID); return err },
		"extend":   func() error { _, err := env.svc.ExtendHold(ctx, guest, ev, req.ID, 0); return err },
		"reorder":  func() error { _, err := env.svc.Reorder(ctx, guest, ev, req.ID, 1); return err },
		"promote":  func() error { _, err := env.svc.Promote(ctx, guest, ev, 0); return err },
		"list":     func() error { _, err := env.svc.ListForEvent(ctx, guest, ev); return err },
		"remove":   func() error { _, err := env.svc.RemoveParticipant(ctx, guest, ev, "guest-2"); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrForbidden) {
			t.Fatalf("%s err = %v, want ErrForbidden", name, err)
		}
	}
	if env.status(t, req.ID) != model.StatusPending {
		t.Fatal("request changed by a forbidden call")
	}
	if len(env.notes.kinds()) != 0 {
		t.Fatalf("forbidden calls notified: %v", env.notes.kinds())
	}
}

func TestApproveAndNotify(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 3)
	env.notes.reset()

	out, err := env.svc.Approve(context.Background(), env.host, ev, req.ID, model.StatusPending)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if out.Status != model.StatusApproved {
		t.Fatalf("status = %s", out.Status)
	}
	if len(env.notes.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(env.notes.sent))
	}
	n := env.notes.sent[0]
	if n.Kind != queue.KindRequestApproved || n.OldStatus != "pending" || n.NewStatus != "approved" || n.UserID != "guest-1" {
		t.Fatalf("notification = %+v", n)
	}

	avail, err := env.svc.Availability(context.Background(), ev)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Confirmed != 3 || avail.Held != 0 || *avail.Available != 7 {
		t.Fatalf("availability = %+v", avail)
	}
}

func TestApproveCapacityExceededDoesNotNotify(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, 5)
	seated := env.request(t, ev, "guest-1", 4)
	if _, err := env.svc.Approve(context.Background(), env.host, ev, seated.ID, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	req := env.request(t, ev, "guest-2", 2)
	env.notes.reset()

	_, err := env.svc.Approve(context.Background(), env.host, ev, req.ID, "")
	var ce *repository.CapacityExceededError
	if !errors.As(err, &ce) || ce.Required != 2 || ce.Available != 1 {
		t.Fatalf("err = %v, want CapacityExceeded{2,1}", err)
	}
	if env.status(t, req.ID) != model.StatusPending {
		t.Fatal("request left pending state after failed approval")
	}
	if len(env.notes.kinds()) != 0 {
		t.Fatalf("failed approval notified: %v", env.notes.kinds())
	}

	out, err := env.svc.Waitlist(context.Background(), env.host, ev, req.ID)
	if err != nil {
		t.Fatalf("waitlist after capacity error: %v", err)
	}
	if *out.WaitlistPos != 1 {
		t.Fatalf("waitlist position = %d, want 1", *out.WaitlistPos)
	}
}

func TestApproveStaleExpectedStatus(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 1)
	if _, err := env.svc.CancelOwn(context.Background(), Actor{UserID: "guest-1"}, ev, req.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	env.notes.reset()

	_, err := env.svc.Approve(context.Background(), env.host, ev, req.ID, model.StatusPending)
	var te *repository.InvalidTransitionError
	if !errors.As(err, &te) || te.Actual != model.StatusCancelled {
		t.Fatalf("err = %v, want InvalidTransition with actual cancelled", err)
	}
	if len(env.notes.kinds()) != 0 {
		t.Fatal("stale approval notified")
	}
}

func TestCancelOwn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 1)

	if _, err := env.svc.CancelOwn(ctx, Actor{UserID: "guest-2"}, ev, req.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cancel by other guest err = %v, want ErrForbidden", err)
	}
	if _, err := env.svc.CancelOwn(ctx, env.host, ev, req.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cancel by host err = %v, want ErrForbidden", err)
	}

	env.clock.Advance(31 * time.Minute)
	if _, err := env.svc.CancelOwn(ctx, Actor{UserID: "guest-1"}, ev, req.ID); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("cancel after hold lapsed err = %v, want ErrInvalidTransition", err)
	}

	other := env.request(t, ev, "guest-3", 1)
	out, err := env.svc.CancelOwn(ctx, Actor{UserID: "guest-3"}, ev, other.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != model.StatusCancelled || out.HoldExpiresAt != nil {
		t.Fatalf("cancelled request = %+v", out)
	}
}

func TestRequestFromAnotherEventIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	evA := env.event(t, 10)
	evB := env.event(t, 10)
	req := env.request(t, evA, "guest-1", 1)

	if _, err := env.svc.Approve(context.Background(), env.host, evB, req.ID, ""); !errors.Is(err, repository.ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
	if _, err := env.svc.Get(context.Background(), Actor{UserID: "guest-1"}, evB, req.ID); !errors.Is(err, repository.ErrRequestNotFound) {
		t.Fatalf("get err = %v, want ErrRequestNotFound", err)
	}
}

func TestGetAllowsOwnerAndHost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 1)

	if _, err := env.svc.Get(ctx, Actor{UserID: "guest-1"}, ev, req.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := env.svc.Get(ctx, env.host, ev, req.ID); err != nil {
		t.Fatalf("host get: %v", err)
	}
	if _, err := env.svc.Get(ctx, Actor{UserID: "guest-2"}, ev, req.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger get err = %v, want ErrForbidden", err)
	}
}

func TestExtendHold(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 1)
	env.notes.reset()

	out, err := env.svc.ExtendHold(context.Background(), env.host, ev, req.ID, 0)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := req.HoldExpiresAt.Add(30 * time.Minute); !out.HoldExpiresAt.Equal(want) {
		t.Fatalf("hold = %v, want %v", out.HoldExpiresAt, want)
	}
	if got := env.notes.kinds(); len(got) != 1 || got[0] != queue.KindHoldExtended {
		t.Fatalf("notifications = %v, want [hold.extended]", got)
	}

	_, err = env.svc.ExtendHold(context.Background(), env.host, ev, req.ID, 48*time.Hour)
	assertValidation(t, err, "minutes")
}

func TestListForEventFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, 10)
	env.request(t, ev, "guest-1", 1)
	env.waitlisted(t, ev, "guest-2", 1)

	all, err := env.svc.ListForEvent(ctx, env.host, ev)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}
	waiting, err := env.svc.ListForEvent(ctx, env.host, ev, model.StatusWaitlisted)
	if err != nil {
		t.Fatalf("list waitlisted: %v", err)
	}
	if len(waiting) != 1 || waiting[0].UserID != "guest-2" {
		t.Fatalf("waitlisted = %+v", waiting)
	}
	_, err = env.svc.ListForEvent(ctx, env.host, ev, "bogus")
	assertValidation(t, err, "status")
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	env := newTestEnv(t)
	env.notes.err = errors.New("broker down")
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 1)

	if _, err := env.svc.Approve(context.Background(), env.host, ev, req.ID, ""); err != nil {
		t.Fatalf("approve with failing notifier: %v", err)
	}
	if env.status(t, req.ID) != model.StatusApproved {
		t.Fatal("approval not committed")
	}
}
