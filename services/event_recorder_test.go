package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"fieldops/constants"
	"fieldops/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Task site and a reading a few meters away from it.
var (
	siteLat = 21.0285
	siteLng = 105.8542
	nearLat = 21.0286
	nearLng = 105.8543
	farLat  = 21.0295
	farLng  = 105.8552
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.GeoCoordinate{},
		&models.Attachment{},
		&models.ActivityRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	u := models.User{Name: name, Email: name + "@example.com", Role: role}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedTask(t *testing.T, db *gorm.DB, status string, assignees ...models.User) models.Task {
	t.Helper()
	task := models.Task{
		Title:     "AC install",
		Status:    status,
		Latitude:  siteLat,
		Longitude: siteLng,
		Assignees: assignees,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

// stubUploader records uploads in memory. onUpload runs before each upload
// and is used to simulate concurrent task mutations in the window between
// validation and the transaction.
type stubUploader struct {
	fail     bool
	onUpload func()
	count    int
}

func (u *stubUploader) Upload(ctx context.Context, in FileInput) (StoredFile, error) {
	if u.onUpload != nil {
		u.onUpload()
	}
	if u.fail {
		return StoredFile{}, errors.New("blob store unreachable")
	}
	u.count++
	return StoredFile{
		StorageKey: fmt.Sprintf("stub-%d", u.count),
		FileName:   in.FileName,
		MimeType:   in.MimeType,
		SizeBytes:  42,
	}, nil
}

func newTestRecorder(t *testing.T) (*EventRecorder, *stubUploader, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	up := &stubUploader{}
	return NewEventRecorder(db, up), up, db
}

func files(n int) []FileInput {
	out := make([]FileInput, n)
	for i := range out {
		out[i] = FileInput{
			FileName: fmt.Sprintf("photo-%d.jpg", i+1),
			MimeType: "image/jpeg",
			Reader:   strings.NewReader("jpegbytes"),
		}
	}
	return out
}

func arrivalInput(task models.Task, actor models.User) EventInput {
	return EventInput{
		TaskID:    task.ID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Latitude:  &nearLat,
		Longitude: &nearLng,
		Notes:     "on site",
		Files:     files(1),
	}
}

func recordArrival(t *testing.T, r *EventRecorder, task models.Task, actor models.User) *EventResult {
	t.Helper()
	res, err := r.RecordEvent(context.Background(), arrivalInput(task, actor), ArrivalEvent)
	if err != nil {
		t.Fatalf("record arrival: %v", err)
	}
	return res
}

func countRecords(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.ActivityRecord{}).Count(&n).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	return n
}

func TestRecordArrival(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	res := recordArrival(t, r, task, worker)

	if res.Task.Status != constants.TaskStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", res.Task.Status)
	}
	if res.Task.StartedAt == nil {
		t.Error("started_at not stamped")
	}
	if res.Record.EventType != constants.EventTypeArrival {
		t.Errorf("event type = %s", res.Record.EventType)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	var payload EventPayload
	if err := json.Unmarshal(res.Record.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.WithinRange == nil || !*payload.WithinRange {
		t.Error("payload should mark the reading within range")
	}
	if len(payload.Attachments) != 1 {
		t.Fatalf("payload attachments = %d, want 1", len(payload.Attachments))
	}

	// Dual link: the attachment is reachable from the task listing and
	// from the event summary, and both point at the same row.
	var viaTask []models.Attachment
	if err := db.Where("task_id = ?", task.ID).Find(&viaTask).Error; err != nil {
		t.Fatalf("list task attachments: %v", err)
	}
	if len(viaTask) != 1 {
		t.Fatalf("task attachment listing = %d rows, want 1", len(viaTask))
	}
	if viaTask[0].ID != payload.Attachments[0].ID {
		t.Errorf("task listing row %d != event summary row %d", viaTask[0].ID, payload.Attachments[0].ID)
	}
	if viaTask[0].ActivityRecordID == nil || *viaTask[0].ActivityRecordID != res.Record.ID {
		t.Error("attachment not cross-linked to the activity record")
	}

	// The coordinate row is discoverable through the originating event.
	var geos []models.GeoCoordinate
	if err := db.Where("activity_record_id = ?", res.Record.ID).Find(&geos).Error; err != nil {
		t.Fatalf("load coordinates: %v", err)
	}
	if len(geos) != 1 {
		t.Fatalf("coordinates for event = %d, want 1", len(geos))
	}
	if geos[0].Latitude != nearLat || geos[0].Longitude != nearLng {
		t.Errorf("coordinate = (%v, %v), want (%v, %v)", geos[0].Latitude, geos[0].Longitude, nearLat, nearLng)
	}
}

func TestRecordArrivalOutOfRangeWarnsButSucceeds(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	in := arrivalInput(task, worker)
	in.Latitude = &farLat
	in.Longitude = &farLng

	res, err := r.RecordEvent(context.Background(), in, ArrivalEvent)
	if err != nil {
		t.Fatalf("out-of-range arrival must not fail: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", res.Warnings)
	}
	if res.Task.Status != constants.TaskStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", res.Task.Status)
	}
}

func TestRecordArrivalWrongStateLeavesNoTrace(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusPreparing, worker)

	_, err := r.RecordEvent(context.Background(), arrivalInput(task, worker), ArrivalEvent)
	if ErrorCode(err) != CodeInvalidState {
		t.Fatalf("err = %v, want INVALID_STATE", err)
	}

	var reloaded models.Task
	if err := db.First(&reloaded, task.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != constants.TaskStatusPreparing {
		t.Errorf("status mutated to %s", reloaded.Status)
	}
	if n := countRecords(t, db); n != 0 {
		t.Errorf("orphaned activity records: %d", n)
	}
}

func TestRecordArrivalRequiresAttachment(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	in := arrivalInput(task, worker)
	in.Files = nil

	_, err := r.RecordEvent(context.Background(), in, ArrivalEvent)
	if ErrorCode(err) != CodeAttachmentsRequired {
		t.Fatalf("err = %v, want ATTACHMENTS_REQUIRED", err)
	}
}

func TestRecordArrivalTooManyAttachments(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	in := arrivalInput(task, worker)
	in.Files = files(11)

	_, err := r.RecordEvent(context.Background(), in, ArrivalEvent)
	if ErrorCode(err) != CodeAttachmentsRequired {
		t.Fatalf("err = %v, want ATTACHMENTS_REQUIRED", err)
	}
}

func TestRecordArrivalUnassignedActorForbidden(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	stranger := seedUser(t, db, "stranger", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	_, err := r.RecordEvent(context.Background(), arrivalInput(task, stranger), ArrivalEvent)
	if ErrorCode(err) != CodeForbidden {
		t.Fatalf("err = %v, want FORBIDDEN", err)
	}
}

func TestRecordArrivalUnknownTask(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)

	in := arrivalInput(models.Task{ID: 9999}, worker)
	_, err := r.RecordEvent(context.Background(), in, ArrivalEvent)
	if ErrorCode(err) != CodeNotFound {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestRecordDeparture(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	recordArrival(t, r, task, worker)

	res, err := r.RecordEvent(context.Background(), arrivalInput(task, worker), DepartureEvent)
	if err != nil {
		t.Fatalf("record departure: %v", err)
	}
	if res.Task.Status != constants.TaskStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", res.Task.Status)
	}
	if res.Task.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
}

func TestRecordDepartureWithoutArrivalFails(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusInProgress, worker)

	_, err := r.RecordEvent(context.Background(), arrivalInput(task, worker), DepartureEvent)
	if ErrorCode(err) != CodePreconditionFailed {
		t.Fatalf("err = %v, want PRECONDITION_FAILED", err)
	}
}

func TestRecordDepartureByOtherWorkerFails(t *testing.T) {
	r, _, db := newTestRecorder(t)
	alice := seedUser(t, db, "alice", constants.RoleMember)
	bob := seedUser(t, db, "bob", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, alice, bob)

	recordArrival(t, r, task, alice)

	// Bob never arrived; the preceding-event check is per actor.
	_, err := r.RecordEvent(context.Background(), arrivalInput(task, bob), DepartureEvent)
	if ErrorCode(err) != CodePreconditionFailed {
		t.Fatalf("err = %v, want PRECONDITION_FAILED", err)
	}
}

// TestRecordDepartureLostRace drives the exact window the conditional
// update protects: the task stops matching the required status after
// validation (here, during the upload) and the transaction must abort
// with CONFLICT instead of double-completing.
func TestRecordDepartureLostRace(t *testing.T) {
	r, up, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	recordArrival(t, r, task, worker)

	up.onUpload = func() {
		// The rival departure wins while this one is still uploading.
		db.Model(&models.Task{}).Where("id = ?", task.ID).
			Update("status", constants.TaskStatusCompleted)
	}

	before := countRecords(t, db)
	_, err := r.RecordEvent(context.Background(), arrivalInput(task, worker), DepartureEvent)
	if ErrorCode(err) != CodeConflict {
		t.Fatalf("err = %v, want CONFLICT", err)
	}

	var reloaded models.Task
	if err := db.First(&reloaded, task.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != constants.TaskStatusCompleted {
		t.Errorf("status = %s, want COMPLETED exactly once", reloaded.Status)
	}
	if after := countRecords(t, db); after != before {
		t.Errorf("loser appended %d activity records", after-before)
	}
}

func TestRecordCommentary(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusPreparing, worker)

	in := EventInput{
		TaskID:    task.ID,
		ActorID:   worker.ID,
		ActorRole: worker.Role,
		Notes:     "customer rescheduled to the afternoon",
	}

	res, err := r.RecordEvent(context.Background(), in, CommentaryEvent)
	if err != nil {
		t.Fatalf("record commentary: %v", err)
	}
	if res.Record.EventType != constants.EventTypeCommentary {
		t.Errorf("event type = %s", res.Record.EventType)
	}
	if res.Task.Status != constants.TaskStatusPreparing {
		t.Errorf("commentary must not transition status, got %s", res.Task.Status)
	}
}

func TestRecordCommentaryElevatedRoleOnUnassignedTask(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	manager := seedUser(t, db, "manager", constants.RoleManager)
	task := seedTask(t, db, constants.TaskStatusInProgress, worker)

	in := EventInput{
		TaskID:    task.ID,
		ActorID:   manager.ID,
		ActorRole: manager.Role,
		Notes:     "called the customer, all good",
	}
	if _, err := r.RecordEvent(context.Background(), in, CommentaryEvent); err != nil {
		t.Fatalf("elevated commentary: %v", err)
	}

	stranger := seedUser(t, db, "stranger", constants.RoleMember)
	in.ActorID = stranger.ID
	in.ActorRole = stranger.Role
	_, err := r.RecordEvent(context.Background(), in, CommentaryEvent)
	if ErrorCode(err) != CodeForbidden {
		t.Fatalf("err = %v, want FORBIDDEN for unassigned member", err)
	}
}

func TestRecordCommentaryAttachmentCap(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusInProgress, worker)

	in := EventInput{
		TaskID:    task.ID,
		ActorID:   worker.ID,
		ActorRole: worker.Role,
		Files:     files(6),
	}
	_, err := r.RecordEvent(context.Background(), in, CommentaryEvent)
	if ErrorCode(err) != CodeAttachmentsRequired {
		t.Fatalf("err = %v, want ATTACHMENTS_REQUIRED", err)
	}
}

func TestRecordEventUploadFailureLeavesTaskUntouched(t *testing.T) {
	r, up, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	up.fail = true

	_, err := r.RecordEvent(context.Background(), arrivalInput(task, worker), ArrivalEvent)
	if ErrorCode(err) != CodeUploadFailed {
		t.Fatalf("err = %v, want UPLOAD_FAILED", err)
	}

	var reloaded models.Task
	if err := db.First(&reloaded, task.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != constants.TaskStatusReady {
		t.Errorf("status mutated to %s on upload failure", reloaded.Status)
	}
	if n := countRecords(t, db); n != 0 {
		t.Errorf("activity records written despite failed upload: %d", n)
	}
}

func TestTransitionTask(t *testing.T) {
	r, _, db := newTestRecorder(t)
	manager := seedUser(t, db, "manager", constants.RoleManager)
	task := seedTask(t, db, constants.TaskStatusPreparing)

	res, err := r.TransitionTask(TransitionInput{
		TaskID:    task.ID,
		ActorID:   manager.ID,
		ActorRole: manager.Role,
		ToStatus:  constants.TaskStatusReady,
		Note:      "parts arrived",
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if res.Task.Status != constants.TaskStatusReady {
		t.Errorf("status = %s, want READY", res.Task.Status)
	}
	if res.Record.EventType != constants.EventTypeStatusChange {
		t.Errorf("event type = %s", res.Record.EventType)
	}

	// Skipping states is rejected and appends nothing.
	before := countRecords(t, db)
	_, err = r.TransitionTask(TransitionInput{
		TaskID:    task.ID,
		ActorID:   manager.ID,
		ActorRole: manager.Role,
		ToStatus:  constants.TaskStatusCompleted,
	})
	if ErrorCode(err) != CodeInvalidState {
		t.Fatalf("err = %v, want INVALID_STATE", err)
	}
	if after := countRecords(t, db); after != before {
		t.Errorf("invalid transition appended %d records", after-before)
	}
}

func TestHoldAndResume(t *testing.T) {
	r, _, db := newTestRecorder(t)
	worker := seedUser(t, db, "worker", constants.RoleMember)
	task := seedTask(t, db, constants.TaskStatusReady, worker)

	recordArrival(t, r, task, worker)

	for _, to := range []string{constants.TaskStatusOnHold, constants.TaskStatusInProgress} {
		res, err := r.TransitionTask(TransitionInput{
			TaskID:    task.ID,
			ActorID:   worker.ID,
			ActorRole: worker.Role,
			ToStatus:  to,
		})
		if err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
		if res.Task.Status != to {
			t.Errorf("status = %s, want %s", res.Task.Status, to)
		}
	}
}
