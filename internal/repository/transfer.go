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

type TransferRepo struct {
	db *pgxpool.Pool
}

func NewTransferRepo(db *pgxpool.Pool) *TransferRepo {
	return &TransferRepo{db: db}
}

func (r *TransferRepo) Create(ctx context.Context, fromUserID, toUserID string, amount int64) (*model.Transfer, error) {
	var t model.Transfer
	query := `
		INSERT INTO transfers (transfer_id, from_user_id, to_user_id, amount, requested_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING transfer_id, from_user_id, to_user_id, amount, requested_at`
	err := r.db.QueryRow(ctx, query, uuid.NewString(), fromUserID, toUserID, amount).Scan(
		&t.TransferID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.RequestedAt,
	)
	if isFKViolation(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert transfer: %w", err)
	}
	return &t, nil
}

func (r *TransferRepo) GetByID(ctx context.Context, transferID string) (*model.Transfer, error) {
	var t model.Transfer
	query := `SELECT transfer_id, from_user_id, to_user_id, amount, requested_at FROM transfers WHERE transfer_id = $1`
	err := r.db.QueryRow(ctx, query, transferID).Scan(
		&t.TransferID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.RequestedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select transfer: %w", err)
	}
	return &t, nil
}

func (r *TransferRepo) UpdateAmount(ctx context.Context, transferID string, amount int64) (*model.Transfer, error) {
	var t model.Transfer
	query := `
		UPDATE transfers SET amount = $2
		 WHERE transfer_id = $1
		RETURNING transfer_id, from_user_id, to_user_id, amount, requested_at`
	err := r.db.QueryRow(ctx, query, transferID, amount).Scan(
		&t.TransferID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.RequestedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update transfer amount: %w", err)
	}
	return &t, nil
}

// Delete removes a transfer row as a compensating action; idempotent.
func (r *TransferRepo) Delete(ctx context.Context, transferID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM transfers WHERE transfer_id = $1`, transferID); err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	return nil
}
