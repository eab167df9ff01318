package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS intrusion_events (
		id          BIGSERIAL PRIMARY KEY,
		episode_id  TEXT NOT NULL,
		labels      JSONB,
		detections  JSONB,
		image       BYTEA NOT NULL,
		realert     BOOLEAN NOT NULL DEFAULT FALSE,
		event_time  TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_intrusion_events_episode_id ON intrusion_events(episode_id);`,
	`CREATE INDEX IF NOT EXISTS idx_intrusion_events_event_time ON intrusion_events(event_time);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
