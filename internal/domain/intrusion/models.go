package intrusion

import (
	"time"

	"github.com/google/uuid"
)

// Frame is a single snapshot pulled from the camera: the encoded JPEG bytes
// plus the wall-clock time it was captured.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// BBox is an axis-aligned bounding box in pixel coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection is one object reported by the model for a frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        BBox    `json:"box"`
}

// Event is emitted by the event engine when a new episode starts, or when a
// sustained episode crosses the re-alert cooldown. It owns the triggering
// frame and the detections that qualified it.
type Event struct {
	EpisodeID  uuid.UUID
	Time       time.Time
	Frame      *Frame
	Detections []Detection
	Realert    bool
}

// Labels returns the distinct detection labels of the event, in first-seen order.
func (e *Event) Labels() []string {
	seen := make(map[string]struct{}, len(e.Detections))
	labels := make([]string, 0, len(e.Detections))
	for _, d := range e.Detections {
		if _, ok := seen[d.Label]; ok {
			continue
		}
		seen[d.Label] = struct{}{}
		labels = append(labels, d.Label)
	}
	return labels
}

// DispatchOutcome records the independent results of alerting and persisting
// one event. Either side may fail without affecting the other.
type DispatchOutcome struct {
	NotifyErr      error
	StoreErr       error
	NotifyAttempts int
	StoreAttempts  int
}

// Delivered reports whether both sinks accepted the event.
func (o DispatchOutcome) Delivered() bool {
	return o.NotifyErr == nil && o.StoreErr == nil
}
