package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Exists reports whether username is registered for eventID.
func (r *RegistrationRepository) Exists(ctx context.Context, eventID int64, username string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_registration
		 WHERE event_id = $1 AND attendee_username = $2)`,
		eventID, username,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return ok, nil
}

// Toggle deletes the (eventID, username) registration when it exists and
// inserts it otherwise, adjusting the event's current_capacity by one.
//
// The whole check-then-act runs in one transaction that first takes a
// transaction-scoped advisory lock derived from the pair, so two concurrent
// toggles for the same pair are serialised while other pairs proceed. The
// unique constraint on (event_id, attendee_username) stays as the backstop;
// hitting it surfaces as ErrConstraintViolation and the caller retries.
func (r *RegistrationRepository) Toggle(ctx context.Context, eventID int64, username string) (model.RegistrationAction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($2::text, $1::bigint))`,
		eventID, username,
	); err != nil {
		return "", fmt.Errorf("lock registration pair: %w", err)
	}

	var eventExists, registered bool
	err = tx.QueryRow(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM event_details WHERE id = $1),
			EXISTS (SELECT 1 FROM event_registration WHERE event_id = $1 AND attendee_username = $2)`,
		eventID, username,
	).Scan(&eventExists, &registered)
	if err != nil {
		return "", fmt.Errorf("read registration state: %w", err)
	}
	if !eventExists {
		return "", ErrNotFound
	}

	action, delta := model.Registered, 1
	if registered {
		action, delta = model.Cancelled, -1
		_, err = tx.Exec(ctx,
			`DELETE FROM event_registration WHERE event_id = $1 AND attendee_username = $2`,
			eventID, username,
		)
		if err != nil {
			return "", wrapWriteErr("delete registration", err)
		}
	} else {
		_, err = tx.Exec(ctx,
			`INSERT INTO event_registration (event_id, attendee_username) VALUES ($1, $2)`,
			eventID, username,
		)
		if err != nil {
			return "", wrapWriteErr("insert registration", err)
		}
	}

	if err = updateRegistrationCount(ctx, tx, eventID, delta); err != nil {
		return "", err
	}

	if err = tx.Commit(ctx); err != nil {
		return "", wrapWriteErr("commit transaction", err)
	}
	return action, nil
}

// ListByEvent returns the attendees registered for an event, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID int64) ([]model.Attendee, error) {
	rows, err := r.db.Query(ctx,
		`SELECT reg.attendee_username,
			COALESCE(u.firstname, ''), COALESCE(u.lastname, ''), COALESCE(u.email, ''),
			reg.created_at
		 FROM event_registration reg
		 LEFT JOIN user_details u ON u.username = reg.attendee_username
		 WHERE reg.event_id = $1
		 ORDER BY reg.created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var attendees []model.Attendee
	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.Username, &a.FirstName, &a.LastName, &a.Email, &a.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}
