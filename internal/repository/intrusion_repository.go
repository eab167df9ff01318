package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sentry-service/internal/domain/intrusion"
)

type IntrusionRepository struct {
	db *gorm.DB
}

func NewIntrusionRepository(db *gorm.DB) *IntrusionRepository {
	return &IntrusionRepository{db: db}
}

type IntrusionEvent struct {
	ID         int64  `gorm:"primaryKey"`
	EpisodeID  string `gorm:"not null;index"`
	Labels     datatypes.JSON
	Detections datatypes.JSON
	Image      []byte    `gorm:"not null"`
	Realert    bool      `gorm:"not null"`
	EventTime  time.Time `gorm:"not null;index"`
	CreatedAt  time.Time
}

func (IntrusionEvent) TableName() string {
	return "intrusion_events"
}

// CreateIntrusionEvent persists one dispatched event: the triggering frame,
// its qualifying detections and the episode it belongs to.
func (r *IntrusionRepository) CreateIntrusionEvent(ctx context.Context, event *intrusion.Event) (int64, error) {
	labels, err := json.Marshal(event.Labels())
	if err != nil {
		return 0, fmt.Errorf("marshal labels: %w", err)
	}
	detections, err := json.Marshal(event.Detections)
	if err != nil {
		return 0, fmt.Errorf("marshal detections: %w", err)
	}

	row := IntrusionEvent{
		EpisodeID:  event.EpisodeID.String(),
		Labels:     labels,
		Detections: detections,
		Image:      event.Frame.Data,
		Realert:    event.Realert,
		EventTime:  event.Time,
		CreatedAt:  time.Now(),
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// FindEvents lists intrusion records newest-first. The image column is
// excluded; snapshots are fetched individually via GetEventImage.
func (r *IntrusionRepository) FindEvents(ctx context.Context, from, to *time.Time, limit, offset int) ([]IntrusionEvent, error) {
	query := r.db.WithContext(ctx).Model(&IntrusionEvent{}).
		Select("id", "episode_id", "labels", "detections", "realert", "event_time", "created_at")

	if from != nil {
		query = query.Where("event_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("event_time <= ?", *to)
	}

	query = query.Order("event_time DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var events []IntrusionEvent
	err := query.Find(&events).Error
	return events, err
}

// GetEventImage returns the stored snapshot for one record.
func (r *IntrusionRepository) GetEventImage(ctx context.Context, id int64) ([]byte, error) {
	var row IntrusionEvent
	err := r.db.WithContext(ctx).
		Select("id", "image").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return row.Image, nil
}

// DeleteOldEvents removes records older than the given number of days and
// returns how many were deleted.
func (r *IntrusionRepository) DeleteOldEvents(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("event_time < ?", cutoff).
		Delete(&IntrusionEvent{})
	return result.RowsAffected, result.Error
}
