package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/event-capacity-reservation/internal/database"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
)

// ParticipantRepo provides access to confirmed attendance.  Inserts happen
// only inside an approval transaction (see EventTx.Transition).
type ParticipantRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewParticipantRepo returns a new ParticipantRepo bound to the given database.
func NewParticipantRepo(db *sql.DB, dialect database.Dialect) *ParticipantRepo {
	return &ParticipantRepo{db: db, dialect: dialect}
}

const participantColumns = `id, event_id, user_id, status, party_size, request_id, created_at`

// insertParticipantTx creates an accepted participant within tx.  The
// (event_id, user_id) unique key rejects a second row for the same user.
func insertParticipantTx(ctx context.Context, tx *sql.Tx, d database.Dialect, p *model.Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, d.Rebind(
		`INSERT INTO participants (`+participantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.EventID, p.UserID, p.Status, p.PartySize, nullString(p.RequestID), toMillis(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// Insert adds an accepted participant outside of the join request flow,
// e.g. a host's own party or a seed fixture.
func (r *ParticipantRepo) Insert(ctx context.Context, p *model.Participant) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := insertParticipantTx(ctx, tx, r.dialect, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// ListByEvent returns the participants of an event, oldest first.
func (r *ParticipantRepo) ListByEvent(ctx context.Context, eventID string) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT `+participantColumns+` FROM participants WHERE event_id = ? ORDER BY created_at, id`), eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	out := make([]model.Participant, 0)
	for rows.Next() {
		var (
			p         model.Participant
			requestID sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.EventID, &p.UserID, &p.Status, &p.PartySize, &requestID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.RequestID = stringPtr(requestID)
		p.CreatedAt = fromMillis(createdAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

// removeParticipantTx marks the user's accepted participation as removed, freeing its
// seats.  It returns ErrParticipantNotFound when nothing matched.
func removeParticipantTx(ctx context.Context, tx *sql.Tx, d database.Dialect, eventID, userID string) error {
	res, err := tx.ExecContext(ctx, d.Rebind(
		`UPDATE participants SET status = ? WHERE event_id = ? AND user_id = ? AND status = ?`),
		model.ParticipantRemoved, eventID, userID, model.ParticipantAccepted,
	)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	if n == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// Remove frees the seats of an accepted participant under the event lock.
func (r *ParticipantRepo) Remove(ctx context.Context, eventID, userID string) error {
	return runInEvent(ctx, r.db, r.dialect, eventID, func(tx *EventTx) error {
		return tx.RemoveParticipant(userID)
	})
}
