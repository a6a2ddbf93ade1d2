package models

import "time"

// GeoCoordinate is an immutable reading captured with a presence event.
// Corrections are new rows plus a new ActivityRecord, never updates.
type GeoCoordinate struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ActivityRecordID *uint     `gorm:"index" json:"activity_record_id"`
	Latitude         float64   `gorm:"not null" json:"latitude"`
	Longitude        float64   `gorm:"not null" json:"longitude"`
	Label            string    `json:"label"`
	CreatedAt        time.Time `json:"created_at"`
}
