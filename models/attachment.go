package models

import (
	"time"

	"gorm.io/gorm"
)

// Attachment is dual-linked: TaskID serves the task's attachment listing,
// ActivityRecordID serves the originating event's summary. Both links point
// at the same stored file; the two views must stay consistent.
type Attachment struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	TaskID           *uint          `gorm:"index" json:"task_id"`
	ActivityRecordID *uint          `gorm:"index" json:"activity_record_id"`
	UploadedByID     uint           `json:"uploaded_by_id"`
	FileName         string         `json:"file_name"`
	MimeType         string         `json:"mime_type"`
	StorageKey       string         `gorm:"uniqueIndex" json:"storage_key"`
	SizeBytes        int64          `json:"size_bytes"`
	CreatedAt        time.Time      `json:"created_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
