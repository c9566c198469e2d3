package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"saldo/internal/metrics"
	"saldo/internal/model"
	"saldo/internal/repository"

	"github.com/sethvargo/go-retry"
)

// Emitter publishes terminal-success notifications. Emission is best-effort:
// a bounded number of attempts with exponential backoff, then the event is
// dropped with a log line and a counter bump. Event loss never rolls back a
// completed ledger mutation, so callers log the returned error and move on.
type Emitter struct {
	bus      repository.MessageBus
	attempts uint64
}

// NewEmitter wraps bus with bounded retry. attempts is the total number of
// publish attempts per event, minimum 1.
func NewEmitter(bus repository.MessageBus, attempts int) *Emitter {
	if attempts < 1 {
		attempts = 1
	}
	return &Emitter{bus: bus, attempts: uint64(attempts)}
}

func (e *Emitter) Emit(ctx context.Context, topic string, event model.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	backoff := retry.WithMaxRetries(e.attempts-1, retry.NewExponential(50*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := e.bus.Publish(topic, data); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		metrics.EventPublishFailures.Inc()
		return fmt.Errorf("publish %s after %d attempts: %w", topic, e.attempts, err)
	}
	return nil
}
