package repository

import (
	"context"
	"errors"
	"fmt"

	"saldo/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TopupRepo struct {
	db *pgxpool.Pool
}

func NewTopupRepo(db *pgxpool.Pool) *TopupRepo {
	return &TopupRepo{db: db}
}

func (r *TopupRepo) Create(ctx context.Context, userID string, amount int64, method string) (*model.Topup, error) {
	var t model.Topup
	query := `
		INSERT INTO topups (topup_id, user_id, amount, method, requested_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING topup_id, user_id, amount, method, requested_at`
	err := r.db.QueryRow(ctx, query, uuid.NewString(), userID, amount, method).Scan(
		&t.TopupID, &t.UserID, &t.Amount, &t.Method, &t.RequestedAt,
	)
	if isFKViolation(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert topup: %w", err)
	}
	return &t, nil
}

func (r *TopupRepo) GetByID(ctx context.Context, topupID string) (*model.Topup, error) {
	var t model.Topup
	query := `SELECT topup_id, user_id, amount, method, requested_at FROM topups WHERE topup_id = $1`
	err := r.db.QueryRow(ctx, query, topupID).Scan(
		&t.TopupID, &t.UserID, &t.Amount, &t.Method, &t.RequestedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTopupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select topup: %w", err)
	}
	return &t, nil
}

// Delete removes a topup row as a compensating action. Deleting an already
// deleted row is a no-op so a retried compensation stays safe.
func (r *TopupRepo) Delete(ctx context.Context, topupID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM topups WHERE topup_id = $1`, topupID); err != nil {
		return fmt.Errorf("delete topup: %w", err)
	}
	return nil
}
