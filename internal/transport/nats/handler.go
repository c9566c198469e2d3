package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"saldo/internal/model"
	"saldo/internal/service"

	"github.com/nats-io/nats.go"
)

// Handler subscribes to NATS command topics and delegates to the saga
// coordinator, for upstream services that drive sagas over the bus instead of
// HTTP. Commands arrive as the same typed requests the HTTP layer decodes.
type Handler struct {
	svc  service.SagaService
	nc   *nats.Conn
	subs []*nats.Subscription
}

func NewHandler(svc service.SagaService, nc *nats.Conn) *Handler {
	return &Handler{svc: svc, nc: nc}
}

// Start subscribes to command topics and blocks until ctx is cancelled
// (graceful shutdown).
func (h *Handler) Start(ctx context.Context) error {
	s1, err := h.nc.QueueSubscribe("commands.topup", "saldo_sagas", func(m *nats.Msg) {
		var req model.TopupRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal topup command", "error", err)
			return
		}
		if _, err := h.svc.Topup(ctx, req); err != nil {
			slog.Error("nats: topup failed", "error", err, "user_id", req.UserID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s1)

	s2, err := h.nc.QueueSubscribe("commands.withdraw", "saldo_sagas", func(m *nats.Msg) {
		var req model.WithdrawRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal withdraw command", "error", err)
			return
		}
		if _, err := h.svc.Withdraw(ctx, req); err != nil {
			slog.Error("nats: withdraw failed", "error", err, "user_id", req.UserID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s2)

	s3, err := h.nc.QueueSubscribe("commands.transfer", "saldo_sagas", func(m *nats.Msg) {
		var req model.TransferRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal transfer command", "error", err)
			return
		}
		if _, err := h.svc.Transfer(ctx, req); err != nil {
			slog.Error("nats: transfer failed", "error", err, "from_user_id", req.FromUserID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s3)

	slog.Info("NATS command handler is running")

	// Block until context is cancelled.
	<-ctx.Done()
	slog.Info("NATS command handler shutting down, draining subscriptions...")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}
