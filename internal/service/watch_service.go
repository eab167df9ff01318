package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"sentry-service/internal/domain/intrusion"
	"sentry-service/internal/repository"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// EventRepository is the read/maintenance side of the log store used by the
// query API.
type EventRepository interface {
	FindEvents(ctx context.Context, from, to *time.Time, limit, offset int) ([]repository.IntrusionEvent, error)
	GetEventImage(ctx context.Context, id int64) ([]byte, error)
	DeleteOldEvents(ctx context.Context, days int) (int64, error)
}

type WatchService struct {
	repo EventRepository
	log  zerolog.Logger
}

func NewWatchService(repo EventRepository, log zerolog.Logger) *WatchService {
	return &WatchService{
		repo: repo,
		log:  log,
	}
}

func (s *WatchService) FindEvents(ctx context.Context, from, to *string, limit, offset int) ([]EventInfo, error) {
	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.repo.FindEvents(ctx, fromTime, toTime, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}

	result := make([]EventInfo, 0, len(events))
	for _, e := range events {
		info := EventInfo{
			ID:        e.ID,
			EpisodeID: e.EpisodeID,
			Realert:   e.Realert,
			EventTime: e.EventTime,
		}
		if len(e.Labels) > 0 {
			if err := json.Unmarshal(e.Labels, &info.Labels); err != nil {
				s.log.Warn().Err(err).Int64("event_id", e.ID).Msg("corrupt labels column")
			}
		}
		if len(e.Detections) > 0 {
			if err := json.Unmarshal(e.Detections, &info.Detections); err != nil {
				s.log.Warn().Err(err).Int64("event_id", e.ID).Msg("corrupt detections column")
			}
		}
		result = append(result, info)
	}

	return result, nil
}

func (s *WatchService) GetEventImage(ctx context.Context, id int64) ([]byte, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id must be positive", ErrInvalidInput)
	}

	image, err := s.repo.GetEventImage(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: event %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get event image: %w", err)
	}
	return image, nil
}

// CleanupOldEvents удаляет события старше указанного количества дней
func (s *WatchService) CleanupOldEvents(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	deleted, err := s.repo.DeleteOldEvents(ctx, days)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old events")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old events")
	}
	return deleted, nil
}

type EventInfo struct {
	ID         int64                 `json:"id"`
	EpisodeID  string                `json:"episode_id"`
	Labels     []string              `json:"labels,omitempty"`
	Detections []intrusion.Detection `json:"detections,omitempty"`
	Realert    bool                  `json:"realert"`
	EventTime  time.Time             `json:"event_time"`
}
