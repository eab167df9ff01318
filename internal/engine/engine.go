package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"sentry-service/internal/domain/intrusion"
)

// State is the debouncing state of the engine.
type State int

const (
	// StateIdle means no episode is in progress.
	StateIdle State = iota
	// StateActive means a watch-listed object is currently considered present.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Engine turns the noisy per-frame detection stream into discrete intrusion
// events. It is pure in-memory state driven by Observe; it never errors.
//
// Observe must be called with non-decreasing timestamps. The orchestrator loop
// is the only caller, so no locking is needed.
type Engine struct {
	watchLabels   map[string]struct{}
	minConfidence float64
	cooldown      time.Duration
	idleGrace     time.Duration

	state     State
	episodeID uuid.UUID
	lastAlert time.Time
	lastSeen  time.Time
}

// New creates an engine in the idle state. Labels are matched
// case-insensitively against the watch list.
func New(watchLabels []string, minConfidence float64, cooldown, idleGrace time.Duration) *Engine {
	labels := make(map[string]struct{}, len(watchLabels))
	for _, l := range watchLabels {
		labels[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	return &Engine{
		watchLabels:   labels,
		minConfidence: minConfidence,
		cooldown:      cooldown,
		idleGrace:     idleGrace,
		state:         StateIdle,
	}
}

// State returns the current debouncing state.
func (e *Engine) State() State {
	return e.state
}

// Observe feeds one frame result into the engine and returns a new event if
// this tick starts an episode or crosses the re-alert cooldown of a sustained
// one. A nil return means nothing to dispatch this tick.
func (e *Engine) Observe(detections []intrusion.Detection, frame *intrusion.Frame, now time.Time) *intrusion.Event {
	qualifying := e.filter(detections)

	if len(qualifying) == 0 {
		// An episode only ends after the object has been absent for the full
		// idle-grace window; brief flicker does not re-arm the engine.
		if e.state == StateActive && now.Sub(e.lastSeen) >= e.idleGrace {
			e.state = StateIdle
		}
		return nil
	}

	e.lastSeen = now

	if e.state == StateIdle {
		e.state = StateActive
		e.episodeID = uuid.New()
		e.lastAlert = now
		return &intrusion.Event{
			EpisodeID:  e.episodeID,
			Time:       now,
			Frame:      frame,
			Detections: qualifying,
		}
	}

	if now.Sub(e.lastAlert) >= e.cooldown {
		e.lastAlert = now
		return &intrusion.Event{
			EpisodeID:  e.episodeID,
			Time:       now,
			Frame:      frame,
			Detections: qualifying,
			Realert:    true,
		}
	}

	return nil
}

func (e *Engine) filter(detections []intrusion.Detection) []intrusion.Detection {
	var qualifying []intrusion.Detection
	for _, d := range detections {
		if d.Confidence < e.minConfidence {
			continue
		}
		if _, ok := e.watchLabels[strings.ToLower(d.Label)]; !ok {
			continue
		}
		qualifying = append(qualifying, d)
	}
	return qualifying
}
