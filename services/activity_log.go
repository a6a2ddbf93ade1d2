package services

import (
	"encoding/json"
	"fmt"

	"fieldops/constants"
	"fieldops/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultPageSize = 50

// TaskSubjectKey builds the activity-log subject key for a task.
func TaskSubjectKey(taskID uint) string {
	return fmt.Sprintf("%s%d", constants.SubjectKeyPrefix, taskID)
}

// ActivityLog is the append-only store of domain events. All task lifecycle
// facts (status changes, presence events, commentary) live here uniformly;
// payloads are opaque JSON so new event types need no schema migration.
type ActivityLog struct {
	DB *gorm.DB
}

// Append writes one record through tx. Records are never updated or
// deleted; per-subject order is the auto-increment id.
func (l *ActivityLog) Append(tx *gorm.DB, actorID uint, subjectKey, eventType string, payload any) (*models.ActivityRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	record := models.ActivityRecord{
		ActorID:    actorID,
		SubjectKey: subjectKey,
		EventType:  eventType,
		Payload:    datatypes.JSON(raw),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

type EventFilter struct {
	EventType string
	ActorID   uint
	Limit     int
	Offset    int
}

func (f EventFilter) apply(q *gorm.DB) *gorm.DB {
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.ActorID != 0 {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	return q.Limit(limit).Offset(f.Offset)
}

// BySubject returns a subject's records newest-first.
func (l *ActivityLog) BySubject(subjectKey string, f EventFilter) ([]models.ActivityRecord, error) {
	var records []models.ActivityRecord
	q := l.DB.Where("subject_key = ?", subjectKey).Order("id DESC")
	if err := f.apply(q).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ByActor returns an actor's records across subjects, newest-first.
func (l *ActivityLog) ByActor(actorID uint, f EventFilter) ([]models.ActivityRecord, error) {
	var records []models.ActivityRecord
	q := l.DB.Where("actor_id = ?", actorID).Order("id DESC")
	if err := f.apply(q).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// HasRecord reports whether a prior record exists for the given
// subject+type+actor. Used for preceding-event preconditions.
func (l *ActivityLog) HasRecord(subjectKey, eventType string, actorID uint) (bool, error) {
	var count int64
	err := l.DB.Model(&models.ActivityRecord{}).
		Where("subject_key = ? AND event_type = ? AND actor_id = ?", subjectKey, eventType, actorID).
		Count(&count).Error
	return count > 0, err
}
