package saga

import (
	"context"
	"fmt"
	"time"

	"saldo/internal/model"

	"github.com/google/uuid"
)

// Withdraw debits a user's balance and records the withdrawal. The upfront
// affordability check is advisory only; the store's conditional debit is the
// authoritative one and may still reject when a concurrent mutation wins the
// race. The record is created only after the debit is confirmed, so a
// Withdraw row always implies an applied debit.
func (c *Coordinator) Withdraw(ctx context.Context, req model.WithdrawRequest) (*model.WithdrawResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	balance, err := c.balances.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if balance.TotalAmount < req.Amount {
		return nil, ErrInsufficientFunds
	}
	c.transition("withdraw", StateInitiated, "user_id", req.UserID, "amount", req.Amount)

	// One compensation key per saga instance: a retried compensation delta
	// under the same instance can never double-apply.
	sagaID := uuid.NewString()
	now := time.Now().UTC()
	balance, err = c.balances.ApplyWithdraw(ctx, req.UserID, req.Amount, now)
	if err != nil {
		// Nothing was created yet, so losing the race needs no compensation.
		return nil, err
	}
	c.transition("withdraw", StateDebitApplied, "user_id", req.UserID, "new_balance", balance.TotalAmount)

	withdraw, err := c.withdraws.Create(ctx, req.UserID, req.Amount, now)
	if err != nil {
		return nil, c.compensateWithdraw(ctx, sagaID, req, err)
	}
	c.transition("withdraw", StateRecordCreated, "withdraw_id", withdraw.WithdrawID)

	c.completed(ctx, "withdraw", model.TopicWithdrawCompleted, model.NotificationEvent{
		RecipientRef: c.recipientRef(ctx, req.UserID),
		Kind:         model.KindWithdraw,
		Amount:       req.Amount,
		NewBalance:   balance.TotalAmount,
		OccurredAt:   now,
	})

	return &model.WithdrawResult{Withdraw: withdraw, Balance: balance}, nil
}

func (c *Coordinator) compensateWithdraw(ctx context.Context, sagaID string, req model.WithdrawRequest, cause error) error {
	ctx = context.WithoutCancel(ctx)
	c.transition("withdraw", StateCompensating, "user_id", req.UserID)

	if _, compErr := c.balances.CompensateDelta(ctx, "withdraw:"+sagaID, req.UserID, req.Amount); compErr != nil {
		return c.inconsistent(&InconsistentError{
			Saga:            "withdraw",
			Step:            "create withdraw record",
			Cause:           cause,
			CompensationErr: compErr,
		}, "user_id", req.UserID)
	}

	c.compensated("withdraw", "user_id", req.UserID)
	return fmt.Errorf("withdraw record failed: %w", cause)
}

// recipientRef resolves the notification contact for a user, falling back to
// the opaque user id when the lookup fails. The event must go out either way.
func (c *Coordinator) recipientRef(ctx context.Context, userID string) string {
	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return userID
	}
	return user.Email
}
