package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-capacity-reservation/internal/database"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
)

// EventTx is one atomic unit of work against a single event.  The event row
// is locked for the lifetime of the transaction, so capacity checks, status
// writes and participant inserts made through it cannot interleave with
// another EventTx for the same event.
type EventTx struct {
	ctx     context.Context
	tx      *sql.Tx
	dialect database.Dialect
	event   *model.Event
}

// TransitionResult describes one committed change to a join request.
type TransitionResult struct {
	Before      model.JoinRequest
	After       model.JoinRequest
	Participant *model.Participant
}

// NewJoinRequest carries the guest-supplied fields of a new request.
type NewJoinRequest struct {
	EventID   string
	UserID    string
	PartySize int
	Note      *string
	HoldFor   time.Duration
}

// runInEvent begins a transaction, locks the event row and runs fn.  The
// transaction commits only if fn returns nil.
func runInEvent(ctx context.Context, db *sql.DB, d database.Dialect, eventID string, fn func(*EventTx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	ev, err := getForUpdateTx(ctx, tx, d, eventID)
	if err != nil {
		return err
	}
	if err := fn(&EventTx{ctx: ctx, tx: tx, dialect: d, event: ev}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Event returns the locked event.
func (t *EventTx) Event() model.Event { return *t.event }

// Availability computes the event's availability inside the transaction.
func (t *EventTx) Availability(now time.Time) (model.Availability, error) {
	return availability(t.ctx, t.tx, t.dialect, t.event.ID, now)
}

// Request loads a join request of this event.  Requests of other events are
// reported as ErrRequestNotFound.
func (t *EventTx) Request(id string) (*model.JoinRequest, error) {
	row := t.tx.QueryRowContext(t.ctx, t.dialect.Rebind(
		`SELECT `+joinRequestColumns+` FROM join_requests WHERE id = ?`), id)
	req, err := scanJoinRequest(row)
	if err != nil {
		return nil, err
	}
	if req.EventID != t.event.ID {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// Waitlist returns the event's waitlisted requests in promotion order.
func (t *EventTx) Waitlist() ([]model.JoinRequest, error) {
	rows, err := t.tx.QueryContext(t.ctx, t.dialect.Rebind(
		`SELECT `+joinRequestColumns+` FROM join_requests
		  WHERE event_id = ? AND status = ?
		  ORDER BY waitlist_pos, created_at, id`),
		t.event.ID, string(model.StatusWaitlisted),
	)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return collectJoinRequests(rows)
}

// Insert creates a pending request holding capacity until now+HoldFor.  It
// enforces the published-event and one-active-request rules.
func (t *EventTx) Insert(in NewJoinRequest, now time.Time) (*model.JoinRequest, error) {
	if !t.event.AcceptsRequests() {
		return nil, ErrEventNotOpen
	}
	active := model.ActiveStatuses
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(active)), ", ")
	args := []any{t.event.ID, in.UserID}
	for _, s := range active {
		args = append(args, string(s))
	}
	var n int
	if err := t.tx.QueryRowContext(t.ctx, t.dialect.Rebind(
		`SELECT COUNT(*) FROM join_requests WHERE event_id = ? AND user_id = ? AND status IN (`+placeholders+`)`),
		args...,
	).Scan(&n); err != nil {
		return nil, fmt.Errorf("check active requests: %w", err)
	}
	if n > 0 {
		return nil, ErrDuplicateActiveRequest
	}
	seated, err := t.hasParticipant(in.UserID)
	if err != nil {
		return nil, err
	}
	if seated {
		return nil, ErrDuplicateActiveRequest
	}

	expires := now.Add(in.HoldFor).UTC()
	req := &model.JoinRequest{
		ID:            uuid.NewString(),
		EventID:       t.event.ID,
		UserID:        in.UserID,
		PartySize:     in.PartySize,
		Note:          in.Note,
		Status:        model.StatusPending,
		HoldExpiresAt: &expires,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if _, err := t.tx.ExecContext(t.ctx, t.dialect.Rebind(
		`INSERT INTO join_requests (`+joinRequestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		req.ID, req.EventID, req.UserID, req.PartySize, nullString(req.Note), string(req.Status),
		nullMillis(req.HoldExpiresAt), nullInt(req.WaitlistPos), toMillis(req.CreatedAt), toMillis(req.UpdatedAt),
	); err != nil {
		return nil, fmt.Errorf("insert join request: %w", err)
	}
	return req, nil
}

// Transition moves a request from expected to to.  It fails with
// *InvalidTransitionError when the stored status is not expected or the
// change is not allowed, and with *CapacityExceededError when an approval
// would push confirmed attendance past capacity.  Nothing is written on
// failure.
func (t *EventTx) Transition(id string, expected, to model.RequestStatus, now time.Time) (*TransitionResult, error) {
	cur, err := t.Request(id)
	if err != nil {
		return nil, err
	}
	if cur.Status != expected {
		return nil, &InvalidTransitionError{RequestID: id, Expected: expected, Actual: cur.Status}
	}
	if !model.CanTransition(cur.Status, to) {
		return nil, &InvalidTransitionError{RequestID: id, Expected: expected, Actual: cur.Status,
			Reason: fmt.Sprintf("cannot move to %s", to)}
	}
	switch to {
	case model.StatusExpired:
		if !cur.HoldLapsed(now) {
			return nil, &InvalidTransitionError{RequestID: id, Expected: expected, Actual: cur.Status, Reason: "hold has not expired"}
		}
	case model.StatusCancelled:
		if cur.HoldLapsed(now) {
			return nil, &InvalidTransitionError{RequestID: id, Expected: expected, Actual: cur.Status, Reason: "hold expired"}
		}
	case model.StatusApproved:
		seated, err := t.hasParticipant(cur.UserID)
		if err != nil {
			return nil, err
		}
		if seated {
			return nil, ErrDuplicateActiveRequest
		}
		if err := t.checkCapacity(cur.PartySize, now); err != nil {
			return nil, err
		}
	}

	next := *cur
	next.Status = to
	next.HoldExpiresAt = nil
	next.WaitlistPos = nil
	next.UpdatedAt = now.UTC()
	if to == model.StatusWaitlisted {
		pos, err := t.nextWaitlistPos()
		if err != nil {
			return nil, err
		}
		next.WaitlistPos = &pos
	}
	if err := t.compareAndSwap(cur, &next); err != nil {
		return nil, err
	}

	res := &TransitionResult{Before: *cur, After: next}
	if to == model.StatusApproved {
		reqID := cur.ID
		p := &model.Participant{
			EventID:   cur.EventID,
			UserID:    cur.UserID,
			Status:    model.ParticipantAccepted,
			PartySize: cur.PartySize,
			RequestID: &reqID,
			CreatedAt: now.UTC(),
		}
		if err := insertParticipantTx(t.ctx, t.tx, t.dialect, p); err != nil {
			return nil, err
		}
		res.Participant = p
	}
	if cur.Status == model.StatusWaitlisted {
		if _, err := t.renumberWaitlist(nil, now); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// hasParticipant reports whether userID has a participant row for the event
// in any status.  Removed participants keep their row, so they count too.
func (t *EventTx) hasParticipant(userID string) (bool, error) {
	var n int
	if err := t.tx.QueryRowContext(t.ctx, t.dialect.Rebind(
		`SELECT COUNT(*) FROM participants WHERE event_id = ? AND user_id = ?`),
		t.event.ID, userID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("check participants: %w", err)
	}
	return n > 0, nil
}

// ExtendHold pushes a pending request's hold back by `by`.  The status does
// not change but the write is status-checked like any transition.
func (t *EventTx) ExtendHold(id string, by time.Duration, now time.Time) (*TransitionResult, error) {
	cur, err := t.Request(id)
	if err != nil {
		return nil, err
	}
	if cur.Status != model.StatusPending {
		return nil, &InvalidTransitionError{RequestID: id, Expected: model.StatusPending, Actual: cur.Status}
	}
	if cur.HoldLapsed(now) {
		return nil, &InvalidTransitionError{RequestID: id, Expected: model.StatusPending, Actual: cur.Status, Reason: "hold expired"}
	}
	base := now.UTC()
	if cur.HoldExpiresAt != nil {
		base = *cur.HoldExpiresAt
	}
	expires := base.Add(by)
	next := *cur
	next.HoldExpiresAt = &expires
	next.UpdatedAt = now.UTC()
	if err := t.compareAndSwap(cur, &next); err != nil {
		return nil, err
	}
	return &TransitionResult{Before: *cur, After: next}, nil
}

// Reorder moves a waitlisted request to the 1-based position pos and shifts
// the entries in between by one.  It returns the waitlist in its new order.
func (t *EventTx) Reorder(id string, pos int, now time.Time) ([]model.JoinRequest, error) {
	list, err := t.Waitlist()
	if err != nil {
		return nil, err
	}
	from := -1
	for i := range list {
		if list[i].ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		cur, err := t.Request(id)
		if err != nil {
			return nil, err
		}
		return nil, &InvalidTransitionError{RequestID: id, Expected: model.StatusWaitlisted, Actual: cur.Status}
	}
	if pos < 1 || pos > len(list) {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidPosition, pos, len(list))
	}
	moved := list[from]
	list = append(list[:from], list[from+1:]...)
	to := pos - 1
	list = append(list[:to], append([]model.JoinRequest{moved}, list[to:]...)...)
	return t.renumberWaitlist(list, now)
}

// RemoveParticipant frees a confirmed participant's seats.
func (t *EventTx) RemoveParticipant(userID string) error {
	return removeParticipantTx(t.ctx, t.tx, t.dialect, t.event.ID, userID)
}

func (t *EventTx) checkCapacity(partySize int, now time.Time) error {
	if !t.event.Bounded() {
		return nil
	}
	avail, err := t.Availability(now)
	if err != nil {
		return err
	}
	remaining := *t.event.CapacityTotal - avail.Confirmed
	if partySize > remaining {
		return &CapacityExceededError{EventID: t.event.ID, Required: partySize, Available: remaining}
	}
	return nil
}

func (t *EventTx) nextWaitlistPos() (int, error) {
	var maxPos sql.NullInt64
	if err := t.tx.QueryRowContext(t.ctx, t.dialect.Rebind(
		`SELECT MAX(waitlist_pos) FROM join_requests WHERE event_id = ? AND status = ?`),
		t.event.ID, string(model.StatusWaitlisted),
	).Scan(&maxPos); err != nil {
		return 0, fmt.Errorf("next waitlist position: %w", err)
	}
	return int(maxPos.Int64) + 1, nil
}

// compareAndSwap writes next over cur only if the stored status still equals
// cur.Status.
func (t *EventTx) compareAndSwap(cur, next *model.JoinRequest) error {
	res, err := t.tx.ExecContext(t.ctx, t.dialect.Rebind(
		`UPDATE join_requests
		    SET status = ?, hold_expires_at = ?, waitlist_pos = ?, updated_at = ?
		  WHERE id = ? AND status = ?`),
		string(next.Status), nullMillis(next.HoldExpiresAt), nullInt(next.WaitlistPos), toMillis(next.UpdatedAt),
		cur.ID, string(cur.Status),
	)
	if err != nil {
		return fmt.Errorf("update join request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update join request: %w", err)
	}
	if n != 1 {
		actual := cur.Status
		if fresh, err := t.Request(cur.ID); err == nil {
			actual = fresh.Status
		}
		return &InvalidTransitionError{RequestID: cur.ID, Expected: cur.Status, Actual: actual}
	}
	return nil
}

// renumberWaitlist assigns positions 1..N following the order of list, or
// the stored order when list is nil.  Only rows whose position changes are
// written.
func (t *EventTx) renumberWaitlist(list []model.JoinRequest, now time.Time) ([]model.JoinRequest, error) {
	if list == nil {
		var err error
		if list, err = t.Waitlist(); err != nil {
			return nil, err
		}
	}
	for i := range list {
		want := i + 1
		if list[i].WaitlistPos != nil && *list[i].WaitlistPos == want {
			continue
		}
		res, err := t.tx.ExecContext(t.ctx, t.dialect.Rebind(
			`UPDATE join_requests SET waitlist_pos = ?, updated_at = ? WHERE id = ? AND status = ?`),
			want, toMillis(now), list[i].ID, string(model.StatusWaitlisted),
		)
		if err != nil {
			return nil, fmt.Errorf("renumber waitlist: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return nil, &InvalidTransitionError{RequestID: list[i].ID, Expected: model.StatusWaitlisted, Actual: model.StatusWaitlisted,
				Reason: "waitlist changed concurrently"}
		}
		list[i].WaitlistPos = &want
		list[i].UpdatedAt = now.UTC()
	}
	return list, nil
}
