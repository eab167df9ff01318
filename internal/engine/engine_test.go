package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentry-service/internal/domain/intrusion"
)

func person(conf float64) intrusion.Detection {
	return intrusion.Detection{Label: "person", Confidence: conf}
}

func frameAt(ts time.Time) *intrusion.Frame {
	return &intrusion.Frame{Data: []byte{0xff, 0xd8}, CapturedAt: ts}
}

func TestObserve_FirstDetectionEmitsEvent(t *testing.T) {
	e := New([]string{"person"}, 0.5, time.Minute, 5*time.Second)
	now := time.Now()

	ev := e.Observe([]intrusion.Detection{person(0.9)}, frameAt(now), now)
	require.NotNil(t, ev)
	assert.False(t, ev.Realert)
	assert.Equal(t, now, ev.Time)
	assert.Len(t, ev.Detections, 1)
	assert.Equal(t, StateActive, e.State())
	assert.NotEqual(t, [16]byte{}, [16]byte(ev.EpisodeID))
}

func TestObserve_EmptyWhileIdleEmitsNothing(t *testing.T) {
	e := New([]string{"person"}, 0.5, time.Minute, 5*time.Second)
	now := time.Now()

	for i := 0; i < 10; i++ {
		ev := e.Observe(nil, frameAt(now), now)
		assert.Nil(t, ev)
		assert.Equal(t, StateIdle, e.State())
		now = now.Add(time.Second)
	}
}

func TestObserve_FilteringByLabelAndConfidence(t *testing.T) {
	tests := []struct {
		name      string
		detection intrusion.Detection
		wantEvent bool
	}{
		{"off watch list", intrusion.Detection{Label: "cat", Confidence: 0.9}, false},
		{"below threshold", intrusion.Detection{Label: "person", Confidence: 0.3}, false},
		{"at threshold", intrusion.Detection{Label: "person", Confidence: 0.5}, true},
		{"case insensitive", intrusion.Detection{Label: "Person", Confidence: 0.8}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New([]string{"person"}, 0.5, time.Minute, 5*time.Second)
			now := time.Now()
			ev := e.Observe([]intrusion.Detection{tt.detection}, frameAt(now), now)
			if tt.wantEvent {
				assert.NotNil(t, ev)
			} else {
				assert.Nil(t, ev)
				assert.Equal(t, StateIdle, e.State())
			}
		})
	}
}

func TestObserve_MixedFrameKeepsOnlyQualifying(t *testing.T) {
	e := New([]string{"person"}, 0.5, time.Minute, 5*time.Second)
	now := time.Now()

	ev := e.Observe([]intrusion.Detection{
		{Label: "cat", Confidence: 0.95},
		person(0.4),
		person(0.7),
	}, frameAt(now), now)

	require.NotNil(t, ev)
	require.Len(t, ev.Detections, 1)
	assert.Equal(t, 0.7, ev.Detections[0].Confidence)
}

func TestObserve_SustainedIntrusionRespectsCooldown(t *testing.T) {
	const cooldown = 60 * time.Second
	e := New([]string{"person"}, 0.5, cooldown, 5*time.Second)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Continuous detection for 200s with 1s ticks: alerts at t=0, 60, 120, 180.
	var emitted []time.Duration
	for s := 0; s <= 200; s++ {
		now := start.Add(time.Duration(s) * time.Second)
		if ev := e.Observe([]intrusion.Detection{person(0.8)}, frameAt(now), now); ev != nil {
			emitted = append(emitted, now.Sub(start))
		}
	}

	require.Equal(t, []time.Duration{0, 60 * time.Second, 120 * time.Second, 180 * time.Second}, emitted)
}

func TestObserve_RealertsShareEpisodeID(t *testing.T) {
	e := New([]string{"person"}, 0.5, 10*time.Second, 5*time.Second)
	start := time.Now()

	first := e.Observe([]intrusion.Detection{person(0.8)}, frameAt(start), start)
	require.NotNil(t, first)

	later := start.Add(10 * time.Second)
	second := e.Observe([]intrusion.Detection{person(0.8)}, frameAt(later), later)
	require.NotNil(t, second)
	assert.True(t, second.Realert)
	assert.Equal(t, first.EpisodeID, second.EpisodeID)
}

func TestObserve_IdleGraceEndsEpisode(t *testing.T) {
	e := New([]string{"person"}, 0.5, time.Minute, 5*time.Second)
	start := time.Now()

	require.NotNil(t, e.Observe([]intrusion.Detection{person(0.8)}, frameAt(start), start))

	// Absent for less than idle-grace: still active, no event on return.
	now := start.Add(3 * time.Second)
	assert.Nil(t, e.Observe(nil, frameAt(now), now))
	assert.Equal(t, StateActive, e.State())

	now = now.Add(time.Second)
	assert.Nil(t, e.Observe([]intrusion.Detection{person(0.8)}, frameAt(now), now))
	assert.Equal(t, StateActive, e.State())
}

func TestObserve_NewEpisodeAfterIdleGrace(t *testing.T) {
	e := New([]string{"person"}, 0.5, time.Minute, 5*time.Second)
	start := time.Now()

	first := e.Observe([]intrusion.Detection{person(0.8)}, frameAt(start), start)
	require.NotNil(t, first)

	// Empty frames past the idle-grace window end the episode without an event.
	now := start.Add(6 * time.Second)
	assert.Nil(t, e.Observe(nil, frameAt(now), now))
	assert.Equal(t, StateIdle, e.State())

	// The next qualifying detection opens a fresh episode immediately.
	now = now.Add(time.Second)
	second := e.Observe([]intrusion.Detection{person(0.8)}, frameAt(now), now)
	require.NotNil(t, second)
	assert.False(t, second.Realert)
	assert.NotEqual(t, first.EpisodeID, second.EpisodeID)
}

func TestObserve_TransitionToIdleEmitsNoEvent(t *testing.T) {
	e := New([]string{"person"}, 0.5, time.Minute, 2*time.Second)
	start := time.Now()

	require.NotNil(t, e.Observe([]intrusion.Detection{person(0.8)}, frameAt(start), start))

	for s := 1; s <= 10; s++ {
		now := start.Add(time.Duration(s) * time.Second)
		assert.Nil(t, e.Observe(nil, frameAt(now), now))
	}
	assert.Equal(t, StateIdle, e.State())
}
