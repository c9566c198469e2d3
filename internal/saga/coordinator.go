package saga

import (
	"context"
	"log/slog"

	"saldo/internal/metrics"
	"saldo/internal/model"
)

// Coordinator runs the topup, withdraw and transfer sagas against the shared
// ledger. Each saga is a fixed step sequence with an explicit compensation
// branch; no step ever holds an in-process lock across a store call, and the
// only cross-saga safety comes from the store's atomic delta application.
type Coordinator struct {
	users     UserStore
	balances  BalanceStore
	topups    TopupStore
	withdraws WithdrawStore
	transfers TransferStore
	emitter   *Emitter

	maxTopupAmount int64
}

func NewCoordinator(stores Stores, emitter *Emitter, maxTopupAmount int64) *Coordinator {
	return &Coordinator{
		users:          stores.Users,
		balances:       stores.Balances,
		topups:         stores.Topups,
		withdraws:      stores.Withdraws,
		transfers:      stores.Transfers,
		emitter:        emitter,
		maxTopupAmount: maxTopupAmount,
	}
}

func (c *Coordinator) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return c.balances.GetByUserID(ctx, userID)
}

func (c *Coordinator) RegisterUser(ctx context.Context, email, firstname, lastname string) (*model.User, error) {
	return c.users.Create(ctx, email, firstname, lastname)
}

func (c *Coordinator) GetTopup(ctx context.Context, topupID string) (*model.Topup, error) {
	return c.topups.GetByID(ctx, topupID)
}

func (c *Coordinator) transition(sagaName string, state State, attrs ...any) {
	args := append([]any{"saga", sagaName, "state", state.String()}, attrs...)
	slog.Info("saga transition", args...)
}

// completed marks the terminal success of a saga and publishes its event.
// Emission failure is logged and counted, never propagated.
func (c *Coordinator) completed(ctx context.Context, sagaName, topic string, event model.NotificationEvent) {
	if err := c.emitter.Emit(ctx, topic, event); err != nil {
		slog.Error("notification event lost", "saga", sagaName, "topic", topic, "error", err)
	} else {
		c.transition(sagaName, StateEventEmitted)
	}
	c.transition(sagaName, StateCompleted)
	metrics.SagasCompleted.WithLabelValues(sagaName).Inc()
}

// inconsistent records a failed compensation: an error-level log line that is
// distinguishable from ordinary failures plus the alerting counter.
func (c *Coordinator) inconsistent(err *InconsistentError, attrs ...any) *InconsistentError {
	args := append([]any{
		"saga", err.Saga,
		"state", StateInconsistent.String(),
		"step", err.Step,
		"cause", err.Cause,
		"compensation_error", err.CompensationErr,
	}, attrs...)
	slog.Error("saga left inconsistent, manual reconciliation required", args...)
	metrics.SagasInconsistent.WithLabelValues(err.Saga).Inc()
	return err
}

func (c *Coordinator) compensated(sagaName string, attrs ...any) {
	c.transition(sagaName, StateCompensated, attrs...)
	metrics.SagasCompensated.WithLabelValues(sagaName).Inc()
}
