package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"saldo/internal/metrics"
	"saldo/internal/model"

	"github.com/nats-io/nats.go"
)

// EmailWorker listens on the completed-saga topics and sends a notification
// email per event. Delivery is best effort: a failed send is logged and
// counted, never retried into the bus.
type EmailWorker struct {
	natsConn *nats.Conn
	sender   Sender
}

func NewEmailWorker(nc *nats.Conn, sender Sender) *EmailWorker {
	return &EmailWorker{
		natsConn: nc,
		sender:   sender,
	}
}

// Run subscribes to the notification topics and blocks until ctx is cancelled.
func (w *EmailWorker) Run(ctx context.Context) error {
	topics := []string{
		model.TopicTopupCompleted,
		model.TopicWithdrawCompleted,
		model.TopicTransferCompleted,
	}

	var subs []*nats.Subscription
	for _, topic := range topics {
		t := topic
		// QueueSubscribe ensures that messages are processed in parallel,
		// but each message will be received by only one worker in the group.
		sub, err := w.natsConn.QueueSubscribe(t, "email-service-group", func(m *nats.Msg) {
			w.handle(t, m.Data)
		})
		if err != nil {
			return fmt.Errorf("worker: failed to subscribe to %s: %w", t, err)
		}
		subs = append(subs, sub)
	}

	slog.Info("Email worker is running", "topics", topics)

	// Wait for shutdown signal.
	<-ctx.Done()

	slog.Info("Email worker received shutdown signal, draining subscriptions...")
	var drainErr error
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			drainErr = err
		}
	}
	return drainErr
}

func (w *EmailWorker) handle(topic string, data []byte) {
	var event model.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("worker: failed to unmarshal notification event", "topic", topic, "error", err)
		return
	}

	for _, mail := range renderEmails(event) {
		if err := w.sender.Send(mail.to, mail.subject, mail.body); err != nil {
			metrics.EmailSendFailures.Inc()
			slog.Error("worker: failed to send email",
				"topic", topic,
				"recipient", mail.to,
				"error", err,
			)
			continue
		}
		metrics.EmailsProcessed.Inc()
		slog.Info("worker: email sent", "topic", topic, "recipient", mail.to)
	}
}

type email struct {
	to      string
	subject string
	body    string
}

// renderEmails builds the outgoing messages for one event. Transfers notify
// both parties, everything else notifies the single recipient.
func renderEmails(event model.NotificationEvent) []email {
	switch event.Kind {
	case model.KindTopup:
		return []email{{
			to:      event.RecipientRef,
			subject: "Top-Up Successful",
			body: fmt.Sprintf("Hi %s, your top-up of %d has been successfully added. Your new balance is %d.",
				event.RecipientRef, event.Amount, event.NewBalance),
		}}
	case model.KindWithdraw:
		return []email{{
			to:      event.RecipientRef,
			subject: "Withdrawal Successful",
			body: fmt.Sprintf("Hi %s, your withdrawal of %d has been successfully processed. Your new balance is %d.",
				event.RecipientRef, event.Amount, event.NewBalance),
		}}
	case model.KindTransfer:
		var mails []email
		if event.SenderRef != "" && event.SenderBalance != nil {
			mails = append(mails, email{
				to:      event.SenderRef,
				subject: "Transfer Successful",
				body: fmt.Sprintf("Hi %s, you have successfully transferred %d to %s. Your new balance is %d.",
					event.SenderRef, event.Amount, event.ReceiverRef, *event.SenderBalance),
			})
		}
		if event.ReceiverRef != "" && event.ReceiverBalance != nil {
			mails = append(mails, email{
				to:      event.ReceiverRef,
				subject: "Transfer Received",
				body: fmt.Sprintf("Hi %s, you have received a transfer of %d from %s. Your new balance is %d.",
					event.ReceiverRef, event.Amount, event.SenderRef, *event.ReceiverBalance),
			})
		}
		return mails
	default:
		slog.Warn("worker: unknown event kind, skipping", "kind", event.Kind)
		return nil
	}
}

// Start implements the infrastructure.Server interface.
func (w *EmailWorker) Start(ctx context.Context) error {
	return w.Run(ctx)
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is via ctx).
func (w *EmailWorker) Stop(ctx context.Context) error {
	return nil
}
