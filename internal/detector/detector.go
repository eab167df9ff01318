package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"sentry-service/internal/domain/intrusion"
)

// ErrDetect marks a transient detection failure (model error or timeout). The
// orchestrator treats it as an empty result for the tick.
var ErrDetect = errors.New("detector: predict failed")

// Client sends frames to the model server's /predict endpoint and decodes the
// detections it returns.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a detector client for the given model-server base endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type predictResponse struct {
	Detections []struct {
		Label      string    `json:"label"`
		Confidence float64   `json:"confidence"`
		Box        []float64 `json:"box"` // [x1, y1, x2, y2]
	} `json:"detections"`
}

// Detect posts the frame's JPEG as a multipart upload and returns the model's
// detections. An empty slice means the model saw nothing of interest.
func (c *Client) Detect(ctx context.Context, frame *intrusion.Frame) ([]intrusion.Detection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("%w: create form part: %v", ErrDetect, err)
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, fmt.Errorf("%w: write image data: %v", ErrDetect, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: close writer: %v", ErrDetect, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrDetect, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetect, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %s: %s", ErrDetect, resp.Status, body)
	}

	var decoded predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrDetect, err)
	}

	detections := make([]intrusion.Detection, 0, len(decoded.Detections))
	for _, d := range decoded.Detections {
		det := intrusion.Detection{Label: d.Label, Confidence: d.Confidence}
		if len(d.Box) == 4 {
			det.Box = intrusion.BBox{X1: d.Box[0], Y1: d.Box[1], X2: d.Box[2], Y2: d.Box[3]}
		}
		detections = append(detections, det)
	}
	return detections, nil
}
