package services

import (
	"fieldops/constants"
	"fieldops/models"
	"fieldops/utils"

	"gorm.io/gorm"
)

// TransitionInput drives a scheduling transition (mark ready, hold,
// resume) that is not tied to a presence event.
type TransitionInput struct {
	TaskID    uint
	ActorID   uint
	ActorRole string
	ToStatus  string
	Note      string
}

// TransitionTask moves a task along the status graph outside the presence
// flow. It uses the same conditional-update and activity-record path as
// RecordEvent, so every transition is backed by exactly one record.
func (r *EventRecorder) TransitionTask(in TransitionInput) (*EventResult, error) {
	task, err := r.loadTask(in.TaskID)
	if err != nil {
		return nil, err
	}

	if !utils.IsElevatedRole(in.ActorRole) && !task.IsAssignedTo(in.ActorID) {
		return nil, newError(CodeForbidden, "actor is not assigned to this task")
	}

	from := task.Status
	if !constants.IsValidStatus(in.ToStatus) || !constants.CanTransition(from, in.ToStatus) {
		return nil, newError(CodeInvalidState, "cannot move task from "+from+" to "+in.ToStatus)
	}

	payload := EventPayload{
		Notes:      in.Note,
		StatusFrom: from,
		StatusTo:   in.ToStatus,
	}

	var record *models.ActivityRecord
	err = r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", task.ID, from).
			Update("status", in.ToStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return newError(CodeConflict, "task status changed concurrently")
		}

		rec, err := r.Log.Append(tx, in.ActorID, TaskSubjectKey(task.ID),
			constants.EventTypeStatusChange, payload)
		if err != nil {
			return err
		}
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := r.loadTask(task.ID)
	if err != nil {
		return nil, err
	}

	return &EventResult{Record: record, Task: updated}, nil
}
