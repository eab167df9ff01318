package detector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentry-service/internal/domain/intrusion"
)

func TestDetect_DecodesDetections(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		gotContentType = r.Header.Get("Content-Type")

		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			file, header, err := r.FormFile("file")
			if assert.NoError(t, err) {
				defer file.Close()
				assert.Equal(t, "frame.jpg", header.Filename)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detections":[
			{"label":"person","confidence":0.87,"box":[10,20,110,220]},
			{"label":"dog","confidence":0.41,"box":[5,5,50,50]}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	frame := &intrusion.Frame{Data: []byte{0xff, 0xd8, 0xff}, CapturedAt: time.Now()}

	detections, err := c.Detect(context.Background(), frame)
	require.NoError(t, err)
	assert.Contains(t, gotContentType, "multipart/form-data")

	require.Len(t, detections, 2)
	assert.Equal(t, "person", detections[0].Label)
	assert.Equal(t, 0.87, detections[0].Confidence)
	assert.Equal(t, intrusion.BBox{X1: 10, Y1: 20, X2: 110, Y2: 220}, detections[0].Box)
}

func TestDetect_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	detections, err := c.Detect(context.Background(), &intrusion.Frame{Data: []byte{1}})
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestDetect_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	_, err := c.Detect(context.Background(), &intrusion.Frame{Data: []byte{1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDetect)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestDetect_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections":`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	_, err := c.Detect(context.Background(), &intrusion.Frame{Data: []byte{1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDetect)
}
