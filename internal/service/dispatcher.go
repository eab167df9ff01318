package service

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"sentry-service/internal/domain/intrusion"
)

// Notifier delivers an alert for one event.
type Notifier interface {
	Send(ctx context.Context, event *intrusion.Event) error
}

// EventStore persists one event as a durable intrusion record.
type EventStore interface {
	CreateIntrusionEvent(ctx context.Context, event *intrusion.Event) (int64, error)
}

// Dispatcher fans one event out to the notification sink and the log store.
// Both sinks are always attempted; each retries independently with bounded
// exponential backoff. Exhausting retries is a terminal per-event failure
// recorded in the outcome — it never propagates to the watch loop.
type Dispatcher struct {
	notifier Notifier
	store    EventStore

	maxRetries     uint
	initialBackoff time.Duration
	maxBackoff     time.Duration

	log zerolog.Logger
}

func NewDispatcher(notifier Notifier, store EventStore, maxRetries uint, initialBackoff, maxBackoff time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:       notifier,
		store:          store,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		log:            log,
	}
}

// Dispatch attempts notify and store concurrently and waits for both to either
// succeed or exhaust their retries. Duplicate deliveries are possible when a
// retry follows a partial success; missing deliveries are not.
func (d *Dispatcher) Dispatch(ctx context.Context, event *intrusion.Event) intrusion.DispatchOutcome {
	var outcome intrusion.DispatchOutcome
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		outcome.NotifyAttempts, outcome.NotifyErr = d.retry(ctx, func() error {
			return d.notifier.Send(ctx, event)
		})
		if outcome.NotifyErr != nil {
			d.log.Error().
				Err(outcome.NotifyErr).
				Str("episode_id", event.EpisodeID.String()).
				Int("attempts", outcome.NotifyAttempts).
				Msg("alert delivery failed permanently")
		}
	}()
	go func() {
		defer wg.Done()
		outcome.StoreAttempts, outcome.StoreErr = d.retry(ctx, func() error {
			_, err := d.store.CreateIntrusionEvent(ctx, event)
			return err
		})
		if outcome.StoreErr != nil {
			d.log.Error().
				Err(outcome.StoreErr).
				Str("episode_id", event.EpisodeID.String()).
				Int("attempts", outcome.StoreAttempts).
				Msg("intrusion record write failed permanently")
		}
	}()
	wg.Wait()

	if outcome.Delivered() {
		d.log.Info().
			Str("episode_id", event.EpisodeID.String()).
			Bool("realert", event.Realert).
			Time("event_time", event.Time).
			Strs("labels", event.Labels()).
			Msg("intrusion event dispatched")
	}
	return outcome
}

func (d *Dispatcher) retry(ctx context.Context, op func() error) (int, error) {
	attempts := 0

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.initialBackoff
	policy.MaxInterval = d.maxBackoff

	err := backoff.Retry(func() error {
		attempts++
		return op()
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(d.maxRetries)), ctx))

	return attempts, err
}
