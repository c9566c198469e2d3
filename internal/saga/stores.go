package saga

import (
	"context"
	"time"

	"saldo/internal/model"
)

// The coordinator depends on these narrow store interfaces, not on the pgx
// implementations, so tests exercise the full compensation paths with fakes.

type UserStore interface {
	Create(ctx context.Context, email, firstname, lastname string) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
}

// BalanceStore is the only way any saga touches total_amount. ApplyDelta and
// ApplyWithdraw must be atomic read-modify-writes at the store; the coordinator
// never computes a new balance in memory and writes it back.
type BalanceStore interface {
	GetByUserID(ctx context.Context, userID string) (*model.Balance, error)
	Create(ctx context.Context, userID string, initial int64) (*model.Balance, error)
	ApplyDelta(ctx context.Context, userID string, delta int64) (*model.Balance, error)
	ApplyWithdraw(ctx context.Context, userID string, amount int64, at time.Time) (*model.Balance, error)
	// CompensateDelta applies a reversal at most once per key, so a retried
	// compensation cannot double-apply.
	CompensateDelta(ctx context.Context, key, userID string, delta int64) (*model.Balance, error)
}

type TopupStore interface {
	Create(ctx context.Context, userID string, amount int64, method string) (*model.Topup, error)
	GetByID(ctx context.Context, topupID string) (*model.Topup, error)
	Delete(ctx context.Context, topupID string) error
}

type WithdrawStore interface {
	Create(ctx context.Context, userID string, amount int64, at time.Time) (*model.Withdraw, error)
}

type TransferStore interface {
	Create(ctx context.Context, fromUserID, toUserID string, amount int64) (*model.Transfer, error)
	GetByID(ctx context.Context, transferID string) (*model.Transfer, error)
	UpdateAmount(ctx context.Context, transferID string, amount int64) (*model.Transfer, error)
	Delete(ctx context.Context, transferID string) error
}

type Stores struct {
	Users     UserStore
	Balances  BalanceStore
	Topups    TopupStore
	Withdraws WithdrawStore
	Transfers TransferStore
}
