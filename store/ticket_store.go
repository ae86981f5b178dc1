package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/models"
)

const ticketsSchema = `
	CREATE TABLE IF NOT EXISTS tickets (
		id                UUID PRIMARY KEY,
		screening_id      TEXT NOT NULL,
		email             TEXT NOT NULL,
		name              TEXT NOT NULL,
		amount_pence      BIGINT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'pending',
		payment_intent_id TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_screening ON tickets (screening_id);
`

type TicketStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewTicketStore(db *sql.DB, l *zap.Logger) *TicketStore {
	return &TicketStore{db: db, logger: logger.OrNop(l).Named("ticket_store")}
}

func (s *TicketStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ticketsSchema); err != nil {
		return fmt.Errorf("failed to create tickets table: %w", err)
	}
	return nil
}

// heldSeats counts paid tickets and pending ones still inside their
// payment window.
const heldSeats = `
	SELECT count(*) FROM tickets
	WHERE screening_id = $1
	  AND (status = 'paid' OR (status = 'pending' AND created_at > now() - interval '30 minutes'));
`

// ReserveTickets inserts all tickets of one purchase atomically. Purchases
// for the same screening are serialized by an advisory lock, and when
// capacity is positive the insert fails with a *CapacityError rather than
// overselling.
func (s *TicketStore) ReserveTickets(ctx context.Context, capacity int, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	screeningID := tickets[0].ScreeningID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ticket transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if capacity > 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1));`, screeningID); err != nil {
			return fmt.Errorf("failed to lock screening %s: %w", screeningID, err)
		}
		var held int
		if err := tx.QueryRowContext(ctx, heldSeats, screeningID).Scan(&held); err != nil {
			return fmt.Errorf("failed to count tickets: %w", err)
		}
		if held+len(tickets) > capacity {
			return &CapacityError{Remaining: max(capacity-held, 0)}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tickets (id, screening_id, email, name, amount_pence, status, payment_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare ticket insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tickets {
		if _, err := stmt.ExecContext(ctx, t.ID, t.ScreeningID, t.Email, t.Name, t.AmountPence, t.Status, t.PaymentIntentID); err != nil {
			return fmt.Errorf("failed to insert ticket %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tickets: %w", err)
	}

	s.logger.Info("tickets reserved",
		zap.String("screening_id", screeningID),
		zap.Int("quantity", len(tickets)),
	)
	return nil
}

// CountSold returns the number of seats taken for a screening.
func (s *TicketStore) CountSold(ctx context.Context, screeningID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, heldSeats, screeningID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return n, nil
}

// ReleaseTickets cancels the pending tickets of a failed or canceled
// payment so their seats can be sold again.
func (s *TicketStore) ReleaseTickets(ctx context.Context, intentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET status = $1
		WHERE payment_intent_id = $2 AND status = $3;
	`, models.StatusCancelled, intentID, models.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to release tickets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected tickets: %w", err)
	}
	if n > 0 {
		s.logger.Info("tickets released", zap.String("intent_id", intentID), zap.Int64("count", n))
	}
	return n, nil
}

// MarkTicketsPaid flips every ticket bought with intentID to paid and
// returns how many changed. A late success also restores released tickets.
func (s *TicketStore) MarkTicketsPaid(ctx context.Context, intentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET status = $1
		WHERE payment_intent_id = $2 AND status <> $1;
	`, models.StatusPaid, intentID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark tickets paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected tickets: %w", err)
	}
	return n, nil
}
