package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrBalanceNotFound   = errors.New("balance not found")
	ErrBalanceExists     = errors.New("balance already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrTopupNotFound     = errors.New("topup not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// isFKViolation reports whether err is a foreign key violation, which for
// this schema always means the referenced user row does not exist.
func isFKViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
