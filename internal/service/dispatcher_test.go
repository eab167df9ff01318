package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentry-service/internal/domain/intrusion"
)

type fakeNotifier struct {
	calls    atomic.Int32
	failFor  int32 // fail the first N calls
	alwaysKO bool
}

func (f *fakeNotifier) Send(ctx context.Context, event *intrusion.Event) error {
	n := f.calls.Add(1)
	if f.alwaysKO || n <= f.failFor {
		return errors.New("smtp unreachable")
	}
	return nil
}

type fakeStore struct {
	calls    atomic.Int32
	failFor  int32
	alwaysKO bool
}

func (f *fakeStore) CreateIntrusionEvent(ctx context.Context, event *intrusion.Event) (int64, error) {
	n := f.calls.Add(1)
	if f.alwaysKO || n <= f.failFor {
		return 0, errors.New("db unreachable")
	}
	return int64(n), nil
}

func dispatchEvent() *intrusion.Event {
	return &intrusion.Event{
		EpisodeID:  uuid.New(),
		Time:       time.Now(),
		Frame:      &intrusion.Frame{Data: []byte{0xff, 0xd8}},
		Detections: []intrusion.Detection{{Label: "person", Confidence: 0.9}},
	}
}

func newTestDispatcher(n Notifier, s EventStore) *Dispatcher {
	return NewDispatcher(n, s, 3, time.Millisecond, 5*time.Millisecond, zerolog.Nop())
}

func TestDispatch_BothSucceed(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &fakeStore{}
	d := newTestDispatcher(notifier, store)

	outcome := d.Dispatch(context.Background(), dispatchEvent())
	assert.True(t, outcome.Delivered())
	assert.Equal(t, 1, outcome.NotifyAttempts)
	assert.Equal(t, 1, outcome.StoreAttempts)
}

func TestDispatch_TransientFailuresAreRetried(t *testing.T) {
	notifier := &fakeNotifier{failFor: 2}
	store := &fakeStore{failFor: 1}
	d := newTestDispatcher(notifier, store)

	outcome := d.Dispatch(context.Background(), dispatchEvent())
	require.True(t, outcome.Delivered())
	assert.Equal(t, 3, outcome.NotifyAttempts)
	assert.Equal(t, 2, outcome.StoreAttempts)
}

func TestDispatch_NotifyFailureDoesNotBlockStore(t *testing.T) {
	notifier := &fakeNotifier{alwaysKO: true}
	store := &fakeStore{}
	d := newTestDispatcher(notifier, store)

	outcome := d.Dispatch(context.Background(), dispatchEvent())
	assert.Error(t, outcome.NotifyErr)
	assert.NoError(t, outcome.StoreErr)
	assert.False(t, outcome.Delivered())
	// maxRetries=3 means 1 initial attempt + 3 retries.
	assert.Equal(t, 4, outcome.NotifyAttempts)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestDispatch_StoreFailureDoesNotBlockNotify(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &fakeStore{alwaysKO: true}
	d := newTestDispatcher(notifier, store)

	outcome := d.Dispatch(context.Background(), dispatchEvent())
	assert.NoError(t, outcome.NotifyErr)
	assert.Error(t, outcome.StoreErr)
	assert.Equal(t, 4, outcome.StoreAttempts)
	assert.Equal(t, int32(1), notifier.calls.Load())
}

func TestDispatch_ExhaustionIsTerminalNotFatal(t *testing.T) {
	notifier := &fakeNotifier{alwaysKO: true}
	store := &fakeStore{alwaysKO: true}
	d := newTestDispatcher(notifier, store)

	// Must return an outcome rather than hang or panic.
	outcome := d.Dispatch(context.Background(), dispatchEvent())
	assert.Error(t, outcome.NotifyErr)
	assert.Error(t, outcome.StoreErr)
}
