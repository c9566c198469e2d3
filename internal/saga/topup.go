package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"saldo/internal/model"
)

// paymentMethods is the closed set of accepted top-up channels.
var paymentMethods = map[string]struct{}{
	"alfamart": {}, "indomart": {}, "lawson": {}, "dana": {}, "ovo": {},
	"gopay": {}, "linkaja": {}, "jenius": {}, "fastpay": {}, "kudo": {},
	"bri": {}, "mandiri": {}, "bca": {}, "bni": {}, "bukopin": {},
	"e-banking": {}, "visa": {}, "mastercard": {}, "discover": {},
	"american express": {}, "paypal": {},
}

// Topup credits a user's balance and records the topup that caused it.
// Step order: validate, verify user, create topup row, apply the credit
// (creating the balance lazily on a first topup), emit topup-completed.
// If the credit fails the topup row is deleted again; if that delete also
// fails the saga surfaces InconsistentError.
func (c *Coordinator) Topup(ctx context.Context, req model.TopupRequest) (*model.TopupResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if _, ok := paymentMethods[method]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, req.Method)
	}
	if c.maxTopupAmount > 0 && req.Amount > c.maxTopupAmount {
		return nil, fmt.Errorf("%w: %d > %d", ErrAmountTooLarge, req.Amount, c.maxTopupAmount)
	}

	user, err := c.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	c.transition("topup", StateInitiated, "user_id", req.UserID, "amount", req.Amount)

	topup, err := c.topups.Create(ctx, req.UserID, req.Amount, method)
	if err != nil {
		return nil, fmt.Errorf("create topup: %w", err)
	}
	c.transition("topup", StateRecordCreated, "topup_id", topup.TopupID)

	balance, err := c.creditOrCreate(ctx, req.UserID, req.Amount)
	if err != nil {
		return nil, c.compensateTopup(ctx, topup, err)
	}
	c.transition("topup", StateCreditApplied, "topup_id", topup.TopupID, "new_balance", balance.TotalAmount)

	c.completed(ctx, "topup", model.TopicTopupCompleted, model.NotificationEvent{
		RecipientRef: user.Email,
		Kind:         model.KindTopup,
		Amount:       topup.Amount,
		NewBalance:   balance.TotalAmount,
		OccurredAt:   time.Now().UTC(),
	})

	return &model.TopupResult{Topup: topup, Balance: balance}, nil
}

// creditOrCreate applies the credit, creating the balance row on a user's
// first topup. Losing the lazy-creation race against a concurrent first topup
// falls back to a second delta on the row the winner created.
func (c *Coordinator) creditOrCreate(ctx context.Context, userID string, amount int64) (*model.Balance, error) {
	balance, err := c.balances.ApplyDelta(ctx, userID, amount)
	if !errors.Is(err, ErrBalanceNotFound) {
		return balance, err
	}

	balance, err = c.balances.Create(ctx, userID, amount)
	if errors.Is(err, ErrBalanceExists) {
		return c.balances.ApplyDelta(ctx, userID, amount)
	}
	return balance, err
}

func (c *Coordinator) compensateTopup(ctx context.Context, topup *model.Topup, cause error) error {
	// Compensation must run to completion even when the caller's deadline
	// fires mid-saga.
	ctx = context.WithoutCancel(ctx)
	c.transition("topup", StateCompensating, "topup_id", topup.TopupID)

	if delErr := c.topups.Delete(ctx, topup.TopupID); delErr != nil {
		return c.inconsistent(&InconsistentError{
			Saga:            "topup",
			Step:            "apply credit",
			Cause:           cause,
			CompensationErr: delErr,
		}, "topup_id", topup.TopupID)
	}

	c.compensated("topup", "topup_id", topup.TopupID)
	return fmt.Errorf("balance update failed: %w", cause)
}
