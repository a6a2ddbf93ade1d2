package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityRecord is an append-only fact on a per-subject log. Rows are never
// updated or deleted; the auto-increment ID doubles as the per-subject
// creation order for feed replay.
type ActivityRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActorID    uint           `gorm:"index" json:"actor_id"`
	SubjectKey string         `gorm:"index;not null" json:"subject_key"`
	EventType  string         `gorm:"index;not null" json:"event_type"`
	Payload    datatypes.JSON `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}
