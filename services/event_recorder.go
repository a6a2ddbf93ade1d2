package services

import (
	"context"
	"errors"
	"time"

	"fieldops/constants"
	"fieldops/models"
	"fieldops/utils"

	"gorm.io/gorm"
)

// EventConfig parameterizes one kind of presence/commentary event so that
// arrival, departure and free-form commentary share a single orchestration
// path. Empty RequiredStatus marks a status-agnostic event (no transition).
type EventConfig struct {
	ActivityType        string
	RequiredStatus      string
	TargetStatus        string
	TimestampColumn     string
	RequiresAttachment  bool
	RequiresLocation    bool
	PrecedingEventType  string
	MinAttachments      int
	MaxAttachments      int
	InvalidStateMessage string
}

var (
	// ArrivalEvent checks a worker in: READY -> IN_PROGRESS, stamps the
	// start time, needs at least one photo and a location reading.
	ArrivalEvent = EventConfig{
		ActivityType:        constants.EventTypeArrival,
		RequiredStatus:      constants.TaskStatusReady,
		TargetStatus:        constants.TaskStatusInProgress,
		TimestampColumn:     "started_at",
		RequiresAttachment:  true,
		RequiresLocation:    true,
		MinAttachments:      1,
		MaxAttachments:      10,
		InvalidStateMessage: "task must be READY before recording arrival",
	}

	// DepartureEvent checks a worker out: IN_PROGRESS -> COMPLETED, stamps
	// the completion time, and requires that the same worker recorded an
	// arrival on this task first.
	DepartureEvent = EventConfig{
		ActivityType:        constants.EventTypeDeparture,
		RequiredStatus:      constants.TaskStatusInProgress,
		TargetStatus:        constants.TaskStatusCompleted,
		TimestampColumn:     "completed_at",
		RequiresAttachment:  true,
		RequiresLocation:    true,
		PrecedingEventType:  constants.EventTypeArrival,
		MinAttachments:      1,
		MaxAttachments:      10,
		InvalidStateMessage: "task must be IN_PROGRESS before recording departure",
	}

	// CommentaryEvent is annotation-only: no status requirement, no
	// transition, optional attachments.
	CommentaryEvent = EventConfig{
		ActivityType:   constants.EventTypeCommentary,
		MaxAttachments: 5,
	}
)

type EventInput struct {
	TaskID    uint
	ActorID   uint
	ActorRole string
	Latitude  *float64
	Longitude *float64
	Notes     string
	Files     []FileInput
}

type EventResult struct {
	Record   *models.ActivityRecord
	Task     *models.Task
	Warnings []string
}

type AttachmentSummary struct {
	ID         uint   `json:"id"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	StorageKey string `json:"storage_key"`
}

// EventPayload is the structured body of an ActivityRecord for presence
// and commentary events. Stored as opaque JSON on the log.
type EventPayload struct {
	Notes          string              `json:"notes,omitempty"`
	Latitude       *float64            `json:"latitude,omitempty"`
	Longitude      *float64            `json:"longitude,omitempty"`
	DistanceMeters *float64            `json:"distance_meters,omitempty"`
	WithinRange    *bool               `json:"within_range,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
	Attachments    []AttachmentSummary `json:"attachments,omitempty"`
	StatusFrom     string              `json:"status_from,omitempty"`
	StatusTo       string              `json:"status_to,omitempty"`
}

// EventRecorder validates, persists and atomically records presence events
// against tasks. Safe for concurrent use; the conditional status update
// inside the transaction is the only concurrency-control primitive.
type EventRecorder struct {
	DB              *gorm.DB
	Uploader        Uploader
	Log             *ActivityLog
	ThresholdMeters float64
}

func NewEventRecorder(db *gorm.DB, uploader Uploader) *EventRecorder {
	return &EventRecorder{
		DB:              db,
		Uploader:        uploader,
		Log:             &ActivityLog{DB: db},
		ThresholdMeters: utils.DefaultGeofenceThresholdMeters,
	}
}

func (r *EventRecorder) loadTask(taskID uint) (*models.Task, error) {
	var task models.Task
	if err := r.DB.Preload("Assignees").First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(CodeNotFound, "task not found")
		}
		return nil, err
	}
	return &task, nil
}

func (r *EventRecorder) authorize(task *models.Task, in EventInput, cfg EventConfig) error {
	if task.IsAssignedTo(in.ActorID) {
		return nil
	}
	// Elevated roles may record status-agnostic events on any task.
	if cfg.RequiredStatus == "" && utils.IsElevatedRole(in.ActorRole) {
		return nil
	}
	return newError(CodeForbidden, "actor is not assigned to this task")
}

// RecordEvent runs the full orchestration: validate preconditions against
// current task state, upload files, verify the geofence, then atomically
// transition state, append the activity record and cross-link attachments.
// Steps before the upload have zero side effects on failure; a transaction
// failure leaves uploaded files as orphaned, unlinked attachments.
func (r *EventRecorder) RecordEvent(ctx context.Context, in EventInput, cfg EventConfig) (*EventResult, error) {
	task, err := r.loadTask(in.TaskID)
	if err != nil {
		return nil, err
	}

	if err := r.authorize(task, in, cfg); err != nil {
		return nil, err
	}

	if cfg.RequiredStatus != "" && task.Status != cfg.RequiredStatus {
		return nil, newError(CodeInvalidState, cfg.InvalidStateMessage)
	}

	subject := TaskSubjectKey(task.ID)

	if cfg.PrecedingEventType != "" {
		found, err := r.Log.HasRecord(subject, cfg.PrecedingEventType, in.ActorID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, newError(CodePreconditionFailed,
				"no prior "+cfg.PrecedingEventType+" recorded by this worker on this task")
		}
	}

	if cfg.RequiresAttachment && len(in.Files) < max(cfg.MinAttachments, 1) {
		return nil, newError(CodeAttachmentsRequired, "at least one attachment is required")
	}
	if cfg.MaxAttachments > 0 && len(in.Files) > cfg.MaxAttachments {
		return nil, newError(CodeAttachmentsRequired, "too many attachments")
	}

	payload := EventPayload{Notes: in.Notes}

	if cfg.RequiresLocation {
		if in.Latitude == nil || in.Longitude == nil {
			return nil, newError(CodePreconditionFailed, "a location reading is required for this event")
		}
		verdict := utils.VerifyGeofence(
			utils.GeoPoint{Latitude: task.Latitude, Longitude: task.Longitude},
			utils.GeoPoint{Latitude: *in.Latitude, Longitude: *in.Longitude},
			r.ThresholdMeters,
		)
		payload.Latitude = in.Latitude
		payload.Longitude = in.Longitude
		payload.DistanceMeters = &verdict.DistanceMeters
		payload.WithinRange = &verdict.WithinRange
		payload.Warnings = verdict.Warnings
	}

	// Uploads happen before the transaction so slow I/O never holds locks.
	// Rows created here are unlinked; the transaction links them, and the
	// orphan sweeper reclaims them if it never commits.
	attachments, err := r.uploadAll(ctx, in)
	if err != nil {
		return nil, err
	}
	for _, a := range attachments {
		payload.Attachments = append(payload.Attachments, AttachmentSummary{
			ID:         a.ID,
			FileName:   a.FileName,
			MimeType:   a.MimeType,
			StorageKey: a.StorageKey,
		})
	}

	if cfg.TargetStatus != "" {
		payload.StatusFrom = cfg.RequiredStatus
		payload.StatusTo = cfg.TargetStatus
	}

	var record *models.ActivityRecord
	err = r.DB.Transaction(func(tx *gorm.DB) error {
		if cfg.TargetStatus != "" {
			updates := map[string]any{"status": cfg.TargetStatus}
			if cfg.TimestampColumn != "" {
				updates[cfg.TimestampColumn] = time.Now()
			}
			// Conditional update: the WHERE status clause is what
			// guarantees at most one winner under concurrency.
			res := tx.Model(&models.Task{}).
				Where("id = ? AND status = ?", task.ID, cfg.RequiredStatus).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return newError(CodeConflict, "task status changed concurrently")
			}
		}

		rec, err := r.Log.Append(tx, in.ActorID, subject, cfg.ActivityType, payload)
		if err != nil {
			return err
		}
		record = rec

		if cfg.RequiresLocation {
			geo := models.GeoCoordinate{
				ActivityRecordID: &rec.ID,
				Latitude:         *in.Latitude,
				Longitude:        *in.Longitude,
				Label:            cfg.ActivityType,
			}
			if err := tx.Create(&geo).Error; err != nil {
				return err
			}
		}

		for i := range attachments {
			res := tx.Model(&attachments[i]).Updates(map[string]any{
				"task_id":            task.ID,
				"activity_record_id": rec.ID,
			})
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, loadErr := r.loadTask(task.ID)
	if loadErr != nil {
		return nil, loadErr
	}

	return &EventResult{
		Record:   record,
		Task:     updated,
		Warnings: payload.Warnings,
	}, nil
}

func (r *EventRecorder) uploadAll(ctx context.Context, in EventInput) ([]models.Attachment, error) {
	var attachments []models.Attachment
	for _, f := range in.Files {
		stored, err := r.Uploader.Upload(ctx, f)
		if err != nil {
			return nil, wrapError(CodeUploadFailed, "attachment upload failed", err)
		}
		a := models.Attachment{
			UploadedByID: in.ActorID,
			FileName:     stored.FileName,
			MimeType:     stored.MimeType,
			StorageKey:   stored.StorageKey,
			SizeBytes:    stored.SizeBytes,
		}
		if err := r.DB.Create(&a).Error; err != nil {
			return nil, wrapError(CodeUploadFailed, "attachment record failed", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, nil
}
