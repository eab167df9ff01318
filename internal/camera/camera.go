package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"sentry-service/internal/domain/intrusion"
)

// ErrFetch marks a transient frame-fetch failure. The orchestrator loop skips
// the tick and keeps polling.
var ErrFetch = errors.New("camera: fetch failed")

// maxFrameBytes caps how much of the snapshot response is read, guarding
// against a misconfigured endpoint streaming MJPEG instead of a single shot.
const maxFrameBytes = 16 << 20

// Client pulls the latest snapshot from the camera's HTTP endpoint.
type Client struct {
	snapshotURL string
	httpClient  *http.Client
	now         func() time.Time
}

// NewClient creates a frame source for the given snapshot URL with a per-fetch
// timeout.
func NewClient(snapshotURL string, timeout time.Duration) *Client {
	return &Client{
		snapshotURL: snapshotURL,
		httpClient:  &http.Client{Timeout: timeout},
		now:         time.Now,
	}
}

// Fetch pulls one frame. The returned frame carries the capture timestamp and
// the raw JPEG bytes; the bytes are validated as a decodable JPEG so that a
// tunnel error page never reaches the detector or an alert email.
func (c *Client) Fetch(ctx context.Context) (*intrusion.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrFetch, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrFetch, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: not a valid JPEG: %v", ErrFetch, err)
	}

	return &intrusion.Frame{Data: data, CapturedAt: c.now()}, nil
}
