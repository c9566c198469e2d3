package service

import (
	"context"

	"saldo/internal/model"
)

// SagaService defines the balance-mutation operations exposed to transports.
// All transport layers depend on this interface, not on the concrete
// coordinator. Inputs are already-typed values; transports own the parsing.
type SagaService interface {
	Topup(ctx context.Context, req model.TopupRequest) (*model.TopupResult, error)
	Withdraw(ctx context.Context, req model.WithdrawRequest) (*model.WithdrawResult, error)
	Transfer(ctx context.Context, req model.TransferRequest) (*model.TransferResult, error)
	UpdateTransfer(ctx context.Context, req model.UpdateTransferRequest) (*model.TransferResult, error)
	GetBalance(ctx context.Context, userID string) (*model.Balance, error)
	GetTopup(ctx context.Context, topupID string) (*model.Topup, error)
	RegisterUser(ctx context.Context, email, firstname, lastname string) (*model.User, error)
}
