package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-capacity-reservation/internal/database"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
)

// JoinRequestRepo provides persistence for join requests.  Reads go straight
// to the database; every write runs inside an EventTx.
type JoinRequestRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewJoinRequestRepo returns a new JoinRequestRepo bound to db.
func NewJoinRequestRepo(db *sql.DB, dialect database.Dialect) *JoinRequestRepo {
	return &JoinRequestRepo{db: db, dialect: dialect}
}

const joinRequestColumns = `id, event_id, user_id, party_size, note, status, hold_expires_at, waitlist_pos, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJoinRequest(row rowScanner) (*model.JoinRequest, error) {
	var (
		r         model.JoinRequest
		note      sql.NullString
		status    string
		holdUntil sql.NullInt64
		pos       sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.UserID, &r.PartySize, &note, &status,
		&holdUntil, &pos, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("scan join request: %w", err)
	}
	r.Note = stringPtr(note)
	r.Status = model.RequestStatus(status)
	r.HoldExpiresAt = timePtr(holdUntil)
	r.WaitlistPos = intPtr(pos)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return &r, nil
}

func collectJoinRequests(rows *sql.Rows) ([]model.JoinRequest, error) {
	defer rows.Close()
	out := make([]model.JoinRequest, 0)
	for rows.Next() {
		r, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate join requests: %w", err)
	}
	return out, nil
}

// InEventTx runs fn in a transaction holding the event's row lock.  fn's
// writes commit together or not at all.
func (r *JoinRequestRepo) InEventTx(ctx context.Context, eventID string, fn func(*EventTx) error) error {
	return runInEvent(ctx, r.db, r.dialect, eventID, fn)
}

// Create inserts a pending request with a fresh hold.  It returns
// ErrEventNotFound, ErrEventNotOpen or ErrDuplicateActiveRequest when the
// request cannot be accepted.
func (r *JoinRequestRepo) Create(ctx context.Context, in NewJoinRequest, now time.Time) (*model.JoinRequest, error) {
	var created *model.JoinRequest
	err := r.InEventTx(ctx, in.EventID, func(tx *EventTx) error {
		req, err := tx.Insert(in, now)
		if err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID fetches a join request.  It returns ErrRequestNotFound when the
// row does not exist.
func (r *JoinRequestRepo) GetByID(ctx context.Context, id string) (*model.JoinRequest, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT `+joinRequestColumns+` FROM join_requests WHERE id = ?`), id)
	return scanJoinRequest(row)
}

// ListByEvent returns the event's requests, optionally filtered by status.
// Waitlisted rows sort by position, everything else by creation time.
func (r *JoinRequestRepo) ListByEvent(ctx context.Context, eventID string, statuses ...model.RequestStatus) ([]model.JoinRequest, error) {
	q := `SELECT ` + joinRequestColumns + ` FROM join_requests WHERE event_id = ?`
	args := []any{eventID}
	if len(statuses) > 0 {
		q += ` AND status IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ") + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	q += ` ORDER BY CASE WHEN waitlist_pos IS NULL THEN 1 ELSE 0 END, waitlist_pos, created_at, id`
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list join requests: %w", err)
	}
	return collectJoinRequests(rows)
}

// Transition performs one status-checked change on the request identified
// by requestID.  See EventTx.Transition for the failure modes.
func (r *JoinRequestRepo) Transition(ctx context.Context, requestID string, expected, to model.RequestStatus, now time.Time) (*TransitionResult, error) {
	cur, err := r.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var res *TransitionResult
	err = r.InEventTx(ctx, cur.EventID, func(tx *EventTx) error {
		out, err := tx.Transition(requestID, expected, to, now)
		res = out
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExtendHold lengthens a pending request's hold by `by`.
func (r *JoinRequestRepo) ExtendHold(ctx context.Context, requestID string, by time.Duration, now time.Time) (*TransitionResult, error) {
	cur, err := r.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var res *TransitionResult
	err = r.InEventTx(ctx, cur.EventID, func(tx *EventTx) error {
		out, err := tx.ExtendHold(requestID, by, now)
		res = out
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reorder moves a waitlisted request of eventID to position pos.
func (r *JoinRequestRepo) Reorder(ctx context.Context, eventID, requestID string, pos int, now time.Time) ([]model.JoinRequest, error) {
	var list []model.JoinRequest
	err := r.InEventTx(ctx, eventID, func(tx *EventTx) error {
		out, err := tx.Reorder(requestID, pos, now)
		list = out
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// HoldCursor marks the last row of a hold listing page.  Pages are ordered
// by (hold_expires_at, id).
type HoldCursor struct {
	ExpiresAt time.Time
	ID        string
}

// CursorAfter returns the cursor positioned after r.
func CursorAfter(r model.JoinRequest) *HoldCursor {
	c := &HoldCursor{ID: r.ID}
	if r.HoldExpiresAt != nil {
		c.ExpiresAt = *r.HoldExpiresAt
	}
	return c
}

// ListStaleHolds returns up to limit pending requests whose hold ended at or
// before now, oldest hold first, starting after the cursor (nil for the first
// page).
func (r *JoinRequestRepo) ListStaleHolds(ctx context.Context, now time.Time, after *HoldCursor, limit int) ([]model.JoinRequest, error) {
	where, args := holdPage(after)
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT `+joinRequestColumns+` FROM join_requests
		  WHERE status = ? AND hold_expires_at <= ?`+where+`
		  ORDER BY hold_expires_at, id
		  LIMIT ?`),
		append(append([]any{string(model.StatusPending), toMillis(now)}, args...), limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale holds: %w", err)
	}
	return collectJoinRequests(rows)
}

// ListExpiringHolds returns pending requests whose hold is still live at now
// but ends no later than until, paged like ListStaleHolds.
func (r *JoinRequestRepo) ListExpiringHolds(ctx context.Context, now, until time.Time, after *HoldCursor, limit int) ([]model.JoinRequest, error) {
	where, args := holdPage(after)
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT `+joinRequestColumns+` FROM join_requests
		  WHERE status = ? AND hold_expires_at > ? AND hold_expires_at <= ?`+where+`
		  ORDER BY hold_expires_at, id
		  LIMIT ?`),
		append(append([]any{string(model.StatusPending), toMillis(now), toMillis(until)}, args...), limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list expiring holds: %w", err)
	}
	return collectJoinRequests(rows)
}

func holdPage(after *HoldCursor) (string, []any) {
	if after == nil {
		return "", nil
	}
	ms := toMillis(after.ExpiresAt)
	return ` AND (hold_expires_at > ? OR (hold_expires_at = ? AND id > ?))`, []any{ms, ms, after.ID}
}
