package repository

import (
	"context"
	"fmt"
	"time"

	"saldo/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WithdrawRepo struct {
	db *pgxpool.Pool
}

func NewWithdrawRepo(db *pgxpool.Pool) *WithdrawRepo {
	return &WithdrawRepo{db: db}
}

// Create inserts the withdrawal record. The saga only calls this after the
// paired debit is confirmed, so an existing row always implies an applied debit.
func (r *WithdrawRepo) Create(ctx context.Context, userID string, amount int64, at time.Time) (*model.Withdraw, error) {
	var w model.Withdraw
	query := `
		INSERT INTO withdraws (withdraw_id, user_id, amount, requested_at)
		VALUES ($1, $2, $3, $4)
		RETURNING withdraw_id, user_id, amount, requested_at`
	err := r.db.QueryRow(ctx, query, uuid.NewString(), userID, amount, at).Scan(
		&w.WithdrawID, &w.UserID, &w.Amount, &w.RequestedAt,
	)
	if isFKViolation(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert withdraw: %w", err)
	}
	return &w, nil
}
