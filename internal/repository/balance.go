package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"saldo/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const balanceColumns = `balance_id, user_id, total_amount, last_withdraw_amount, last_withdraw_time, updated_at`

// BalanceRepo is the single mutation path for balances. Every delta is applied
// as one conditional UPDATE (new amount computed inside the statement, guarded
// by total_amount + delta >= 0), so two concurrent sagas can never read-modify-
// write each other's update or drive a balance negative. Redis keeps a
// write-through copy of each row for cheap reads, and holds the SETNX keys that
// deduplicate compensation deltas.
type BalanceRepo struct {
	db  *pgxpool.Pool
	rdb *redis.Client
}

func NewBalanceRepo(db *pgxpool.Pool, rdb *redis.Client) *BalanceRepo {
	return &BalanceRepo{db: db, rdb: rdb}
}

func balanceKey(userID string) string {
	return "balance:" + userID
}

func compensationKey(key string) string {
	return "comp:" + key
}

// GetByUserID reads the cached row, falling back to Postgres on a miss.
func (r *BalanceRepo) GetByUserID(ctx context.Context, userID string) (*model.Balance, error) {
	if data, err := r.rdb.Get(ctx, balanceKey(userID)).Bytes(); err == nil {
		var b model.Balance
		if err := json.Unmarshal(data, &b); err == nil {
			return &b, nil
		}
	}

	var b model.Balance
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&b.BalanceID, &b.UserID, &b.TotalAmount, &b.LastWithdrawAmount, &b.LastWithdrawTime, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBalanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select balance: %w", err)
	}

	r.cacheSet(ctx, &b)
	return &b, nil
}

// Create inserts the balance row for a user. The unique user_id index makes a
// duplicate creation surface as ErrBalanceExists, never as a second row.
func (r *BalanceRepo) Create(ctx context.Context, userID string, initial int64) (*model.Balance, error) {
	if initial < 0 {
		return nil, ErrInvalidAmount
	}

	var b model.Balance
	query := `
		INSERT INTO balances (balance_id, user_id, total_amount, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + balanceColumns
	err := r.db.QueryRow(ctx, query, uuid.NewString(), userID, initial).Scan(
		&b.BalanceID, &b.UserID, &b.TotalAmount, &b.LastWithdrawAmount, &b.LastWithdrawTime, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBalanceExists
	}
	if isFKViolation(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert balance: %w", err)
	}

	r.cacheSet(ctx, &b)
	return &b, nil
}

// ApplyDelta atomically adds delta to the user's balance. The non-negative
// invariant lives in the WHERE clause: a debit that would go below zero
// matches no row and is reported as ErrInsufficientFunds.
func (r *BalanceRepo) ApplyDelta(ctx context.Context, userID string, delta int64) (*model.Balance, error) {
	query := `
		UPDATE balances
		   SET total_amount = total_amount + $2, updated_at = now()
		 WHERE user_id = $1 AND total_amount + $2 >= 0
		RETURNING ` + balanceColumns
	return r.applyConditional(ctx, userID, query, userID, delta)
}

// ApplyWithdraw debits amount and records the last-withdrawal marker in the
// same statement, so the marker can never disagree with the debit it describes.
func (r *BalanceRepo) ApplyWithdraw(ctx context.Context, userID string, amount int64, at time.Time) (*model.Balance, error) {
	query := `
		UPDATE balances
		   SET total_amount = total_amount - $2,
		       last_withdraw_amount = $2,
		       last_withdraw_time = $3,
		       updated_at = now()
		 WHERE user_id = $1 AND total_amount - $2 >= 0
		RETURNING ` + balanceColumns
	return r.applyConditional(ctx, userID, query, userID, amount, at)
}

// CompensateDelta applies a compensating delta at most once per key. The key
// names one compensation of one saga instance; a retried compensation finds
// the key already set and returns the current row instead of re-applying.
func (r *BalanceRepo) CompensateDelta(ctx context.Context, key, userID string, delta int64) (*model.Balance, error) {
	set, err := r.rdb.SetNX(ctx, compensationKey(key), 1, 24*time.Hour).Result()
	if err != nil {
		// Redis being down must not block a compensation; losing the dedup
		// guard is preferable to leaving the ledger unreconciled.
		slog.Warn("compensation dedup unavailable, applying without guard", "key", key, "error", err)
		return r.ApplyDelta(ctx, userID, delta)
	}
	if !set {
		slog.Info("compensation already applied, skipping", "key", key, "user_id", userID)
		return r.GetByUserID(ctx, userID)
	}

	b, err := r.ApplyDelta(ctx, userID, delta)
	if err != nil {
		// Release the key so a later retry of this compensation can run.
		_ = r.rdb.Del(context.WithoutCancel(ctx), compensationKey(key)).Err()
		return nil, err
	}
	return b, nil
}

func (r *BalanceRepo) applyConditional(ctx context.Context, userID, query string, args ...any) (*model.Balance, error) {
	var b model.Balance
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&b.BalanceID, &b.UserID, &b.TotalAmount, &b.LastWithdrawAmount, &b.LastWithdrawTime, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row matched: either the balance does not exist or the guard
		// rejected the debit. Disambiguate with a point lookup.
		var exists bool
		if exErr := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM balances WHERE user_id = $1)`, userID).Scan(&exists); exErr != nil {
			return nil, fmt.Errorf("check balance existence: %w", exErr)
		}
		if exists {
			return nil, ErrInsufficientFunds
		}
		return nil, ErrBalanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	r.cacheSet(ctx, &b)
	return &b, nil
}

// cacheSet refreshes the write-through copy. Cache loss only costs a read.
func (r *BalanceRepo) cacheSet(ctx context.Context, b *model.Balance) {
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, balanceKey(b.UserID), data, 0).Err(); err != nil {
		slog.Debug("failed to cache balance", "user_id", b.UserID, "error", err)
	}
}
