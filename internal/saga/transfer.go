package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saldo/internal/metrics"
	"saldo/internal/model"

	"github.com/google/uuid"
)

// Transfer moves amount between two balances. The two delta applications are
// independent atomic updates, not one database transaction, which is exactly
// why the credit leg carries an explicit reversal of the debit leg.
//
// Step order: verify both users, create the transfer row, debit the sender,
// credit the receiver, emit one transfer-completed event with both new
// balances. A failed debit only needs the row deleted; a failed credit first
// reverses the debit, then deletes the row. A failed reversal leaves the
// sender debited with nothing credited and surfaces InconsistentError.
func (c *Coordinator) Transfer(ctx context.Context, req model.TransferRequest) (*model.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.FromUserID == req.ToUserID {
		return nil, ErrSelfTransfer
	}

	sender, err := c.users.GetByID(ctx, req.FromUserID)
	if err != nil {
		return nil, fmt.Errorf("sender %s: %w", req.FromUserID, err)
	}
	receiver, err := c.users.GetByID(ctx, req.ToUserID)
	if err != nil {
		return nil, fmt.Errorf("receiver %s: %w", req.ToUserID, err)
	}
	c.transition("transfer", StateInitiated,
		"from_user_id", req.FromUserID, "to_user_id", req.ToUserID, "amount", req.Amount)

	transfer, err := c.transfers.Create(ctx, req.FromUserID, req.ToUserID, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}
	c.transition("transfer", StateRecordCreated, "transfer_id", transfer.TransferID)

	senderBalance, err := c.balances.ApplyDelta(ctx, req.FromUserID, -req.Amount)
	if err != nil {
		// Nothing applied yet: the row alone must not survive, because an
		// existing Transfer row implies both legs were attempted.
		return nil, c.rollbackTransferRecord(ctx, transfer, "debit sender", err)
	}
	c.transition("transfer", StateDebitApplied, "transfer_id", transfer.TransferID)

	receiverBalance, err := c.balances.ApplyDelta(ctx, req.ToUserID, req.Amount)
	if err != nil {
		return nil, c.compensateTransferDebit(ctx, transfer, err)
	}
	c.transition("transfer", StateCreditApplied, "transfer_id", transfer.TransferID)

	c.completed(ctx, "transfer", model.TopicTransferCompleted, transferEvent(
		sender.Email, receiver.Email, req.Amount, senderBalance, receiverBalance,
	))

	return &model.TransferResult{
		Transfer:        transfer,
		SenderBalance:   senderBalance,
		ReceiverBalance: receiverBalance,
	}, nil
}

// UpdateTransfer changes a prior transfer's amount by applying the difference
// between old and new amount to both legs, with the same debit/credit/
// compensate shape as Transfer keyed off the diff.
func (c *Coordinator) UpdateTransfer(ctx context.Context, req model.UpdateTransferRequest) (*model.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	transfer, err := c.transfers.GetByID(ctx, req.TransferID)
	if err != nil {
		return nil, err
	}

	diff := req.Amount - transfer.Amount
	if diff == 0 {
		senderBalance, err := c.balances.GetByUserID(ctx, transfer.FromUserID)
		if err != nil {
			return nil, err
		}
		receiverBalance, err := c.balances.GetByUserID(ctx, transfer.ToUserID)
		if err != nil {
			return nil, err
		}
		return &model.TransferResult{Transfer: transfer, SenderBalance: senderBalance, ReceiverBalance: receiverBalance}, nil
	}
	c.transition("transfer_update", StateInitiated, "transfer_id", transfer.TransferID, "diff", diff)

	// One compensation key pair per saga instance: the dedup guard must only
	// absorb retries of this invocation's own compensation. The transfer id
	// alone is not enough, the same transfer can be updated again later.
	sagaID := uuid.NewString()

	// A raised amount debits the sender further; a lowered one credits back.
	senderBalance, err := c.balances.ApplyDelta(ctx, transfer.FromUserID, -diff)
	if err != nil {
		return nil, fmt.Errorf("adjust sender balance: %w", err)
	}
	c.transition("transfer_update", StateDebitApplied, "transfer_id", transfer.TransferID)

	receiverBalance, err := c.balances.ApplyDelta(ctx, transfer.ToUserID, diff)
	if err != nil {
		compErr := c.reverseUpdateLeg(ctx, sagaID, transfer.FromUserID, diff, "sender")
		if compErr != nil {
			return nil, c.inconsistent(&InconsistentError{
				Saga:            "transfer_update",
				Step:            "adjust receiver balance",
				Cause:           err,
				CompensationErr: compErr,
			}, "transfer_id", transfer.TransferID)
		}
		c.compensated("transfer_update", "transfer_id", transfer.TransferID)
		return nil, fmt.Errorf("adjust receiver balance: %w", err)
	}
	c.transition("transfer_update", StateCreditApplied, "transfer_id", transfer.TransferID)

	updated, err := c.transfers.UpdateAmount(ctx, transfer.TransferID, req.Amount)
	if err != nil {
		// Both legs applied but the record still carries the old amount:
		// mirror the compensation on both sides.
		recvErr := c.reverseUpdateLeg(ctx, sagaID, transfer.ToUserID, -diff, "receiver")
		sendErr := c.reverseUpdateLeg(ctx, sagaID, transfer.FromUserID, diff, "sender")
		if recvErr != nil || sendErr != nil {
			return nil, c.inconsistent(&InconsistentError{
				Saga:            "transfer_update",
				Step:            "persist new amount",
				Cause:           err,
				CompensationErr: errors.Join(recvErr, sendErr),
			}, "transfer_id", transfer.TransferID)
		}
		c.compensated("transfer_update", "transfer_id", transfer.TransferID)
		return nil, fmt.Errorf("persist new amount: %w", err)
	}

	c.transition("transfer_update", StateCompleted, "transfer_id", transfer.TransferID)
	metrics.SagasCompleted.WithLabelValues("transfer_update").Inc()

	return &model.TransferResult{
		Transfer:        updated,
		SenderBalance:   senderBalance,
		ReceiverBalance: receiverBalance,
	}, nil
}

func (c *Coordinator) reverseUpdateLeg(ctx context.Context, sagaID, userID string, delta int64, side string) error {
	ctx = context.WithoutCancel(ctx)
	key := fmt.Sprintf("transfer-update:%s:%s", sagaID, side)
	_, err := c.balances.CompensateDelta(ctx, key, userID, delta)
	return err
}

// rollbackTransferRecord deletes the transfer row after a failed debit.
func (c *Coordinator) rollbackTransferRecord(ctx context.Context, transfer *model.Transfer, step string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	c.transition("transfer", StateCompensating, "transfer_id", transfer.TransferID)

	if delErr := c.transfers.Delete(ctx, transfer.TransferID); delErr != nil {
		return c.inconsistent(&InconsistentError{
			Saga:            "transfer",
			Step:            step,
			Cause:           cause,
			CompensationErr: delErr,
		}, "transfer_id", transfer.TransferID)
	}

	c.compensated("transfer", "transfer_id", transfer.TransferID)
	return fmt.Errorf("%s: %w", step, cause)
}

// compensateTransferDebit reverses the sender debit after a failed credit,
// then removes the transfer row.
func (c *Coordinator) compensateTransferDebit(ctx context.Context, transfer *model.Transfer, cause error) error {
	ctx = context.WithoutCancel(ctx)
	c.transition("transfer", StateCompensating, "transfer_id", transfer.TransferID)

	key := "transfer:" + transfer.TransferID
	if _, compErr := c.balances.CompensateDelta(ctx, key, transfer.FromUserID, transfer.Amount); compErr != nil {
		return c.inconsistent(&InconsistentError{
			Saga:            "transfer",
			Step:            "credit receiver",
			Cause:           cause,
			CompensationErr: compErr,
		}, "transfer_id", transfer.TransferID)
	}

	if delErr := c.transfers.Delete(ctx, transfer.TransferID); delErr != nil {
		return c.inconsistent(&InconsistentError{
			Saga:            "transfer",
			Step:            "credit receiver",
			Cause:           cause,
			CompensationErr: delErr,
		}, "transfer_id", transfer.TransferID)
	}

	c.compensated("transfer", "transfer_id", transfer.TransferID)
	return fmt.Errorf("credit receiver: %w", cause)
}

func transferEvent(senderRef, receiverRef string, amount int64, senderBalance, receiverBalance *model.Balance) model.NotificationEvent {
	sb := senderBalance.TotalAmount
	rb := receiverBalance.TotalAmount
	return model.NotificationEvent{
		RecipientRef:    senderRef,
		Kind:            model.KindTransfer,
		Amount:          amount,
		NewBalance:      sb,
		OccurredAt:      time.Now().UTC(),
		SenderRef:       senderRef,
		ReceiverRef:     receiverRef,
		SenderBalance:   &sb,
		ReceiverBalance: &rb,
	}
}
