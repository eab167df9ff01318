package watcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sentry-service/internal/domain/intrusion"
)

// FrameSource pulls the latest frame from the camera.
type FrameSource interface {
	Fetch(ctx context.Context) (*intrusion.Frame, error)
}

// Detector runs the model over one frame.
type Detector interface {
	Detect(ctx context.Context, frame *intrusion.Frame) ([]intrusion.Detection, error)
}

// EventEngine debounces per-frame results into events.
type EventEngine interface {
	Observe(detections []intrusion.Detection, frame *intrusion.Frame, now time.Time) *intrusion.Event
}

// EventDispatcher delivers one event to the alert and log sinks.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *intrusion.Event) intrusion.DispatchOutcome
}

// Loop states, reported by the health endpoint.
const (
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
)

// Stats is a snapshot of the loop's counters.
type Stats struct {
	State          string `json:"state"`
	Ticks          uint64 `json:"ticks"`
	FetchFailures  uint64 `json:"fetch_failures"`
	DetectFailures uint64 `json:"detect_failures"`
	Events         uint64 `json:"events"`
	FailedEvents   uint64 `json:"failed_events"`
}

// Watcher is the orchestrator loop: fetch a frame, run detection, feed the
// engine, dispatch any event. It never stops on a transient adapter failure.
type Watcher struct {
	source       FrameSource
	detector     Detector
	engine       EventEngine
	dispatcher   EventDispatcher
	pollInterval time.Duration
	log          zerolog.Logger

	state          atomic.Value
	ticks          atomic.Uint64
	fetchFailures  atomic.Uint64
	detectFailures atomic.Uint64
	events         atomic.Uint64
	failedEvents   atomic.Uint64
}

func New(source FrameSource, detector Detector, engine EventEngine, dispatcher EventDispatcher, pollInterval time.Duration, log zerolog.Logger) *Watcher {
	w := &Watcher{
		source:       source,
		detector:     detector,
		engine:       engine,
		dispatcher:   dispatcher,
		pollInterval: pollInterval,
		log:          log,
	}
	w.state.Store(StateStopped)
	return w
}

// Stats returns the current loop counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		State:          w.state.Load().(string),
		Ticks:          w.ticks.Load(),
		FetchFailures:  w.fetchFailures.Load(),
		DetectFailures: w.detectFailures.Load(),
		Events:         w.events.Load(),
		FailedEvents:   w.failedEvents.Load(),
	}
}

// Run polls until ctx is cancelled. Cancellation is observed between ticks:
// the tick in flight, including its dispatch, runs on an uncancellable child
// context so that an event is never left half-dispatched.
func (w *Watcher) Run(ctx context.Context) {
	w.state.Store(StateRunning)
	w.log.Info().Dur("poll_interval", w.pollInterval).Msg("watch loop started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.tick(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			w.state.Store(StateStopping)
			w.log.Info().Msg("watch loop stopping")
			w.state.Store(StateStopped)
			return
		case <-ticker.C:
			w.tick(context.WithoutCancel(ctx))
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	w.ticks.Add(1)

	frame, err := w.source.Fetch(ctx)
	if err != nil {
		w.fetchFailures.Add(1)
		w.log.Warn().Err(err).Msg("frame fetch failed, skipping tick")
		return
	}

	detections, err := w.detector.Detect(ctx, frame)
	if err != nil {
		// A missed detection beats a crashed loop: treat the tick as empty so
		// a sustained model outage eventually closes the episode.
		w.detectFailures.Add(1)
		w.log.Warn().Err(err).Msg("detection failed, treating frame as empty")
		detections = nil
	}

	event := w.engine.Observe(detections, frame, frame.CapturedAt)
	if event == nil {
		return
	}

	w.log.Info().
		Str("episode_id", event.EpisodeID.String()).
		Bool("realert", event.Realert).
		Strs("labels", event.Labels()).
		Msg("intrusion event")

	outcome := w.dispatcher.Dispatch(ctx, event)
	w.events.Add(1)
	if !outcome.Delivered() {
		w.failedEvents.Add(1)
	}
}
