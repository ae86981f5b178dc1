package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/models"
)

const membersSchema = `
	CREATE TABLE IF NOT EXISTS members (
		id                SERIAL PRIMARY KEY,
		email             TEXT NOT NULL UNIQUE,
		name              TEXT NOT NULL,
		tier              TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'pending',
		payment_intent_id TEXT NOT NULL DEFAULT '',
		hashed_password   BYTEA NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

type MemberStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMemberStore(db *sql.DB, l *zap.Logger) *MemberStore {
	return &MemberStore{db: db, logger: logger.OrNop(l).Named("member_store")}
}

func (s *MemberStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, membersSchema); err != nil {
		return fmt.Errorf("failed to create members table: %w", err)
	}
	return nil
}

// CreateMember inserts a pending member awaiting payment.
func (s *MemberStore) CreateMember(ctx context.Context, m *models.Member) (*models.Member, error) {
	created := *m
	query := `
		INSERT INTO members (email, name, tier, status, payment_intent_id, hashed_password)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at;
	`
	err := s.db.QueryRowContext(ctx, query,
		m.Email, m.Name, m.Tier, m.Status, m.PaymentIntentID, m.HashedPassword,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrMemberExists
		}
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	s.logger.Info("member created", zap.Int("member_id", created.ID), zap.String("tier", created.Tier))
	return &created, nil
}

func (s *MemberStore) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	m := &models.Member{}
	query := `
		SELECT id, email, name, tier, status, payment_intent_id, hashed_password, created_at, updated_at
		FROM members
		WHERE email = $1;
	`
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&m.ID,
		&m.Email,
		&m.Name,
		&m.Tier,
		&m.Status,
		&m.PaymentIntentID,
		&m.HashedPassword,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}
	return m, nil
}

// MarkMemberPaid flips the member whose sign-up used intentID to paid.
func (s *MemberStore) MarkMemberPaid(ctx context.Context, intentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE members SET status = $1, updated_at = now()
		WHERE payment_intent_id = $2;
	`, models.StatusPaid, intentID)
	if err != nil {
		return fmt.Errorf("failed to mark member paid: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
