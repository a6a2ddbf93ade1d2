package services

import (
	"log"
	"time"

	"fieldops/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// OrphanSweeper reclaims attachments whose upload succeeded but whose
// recording transaction never committed, leaving them unlinked to any task
// or activity record. Rows are soft-deleted; blob cleanup can follow the
// deleted rows offline.
type OrphanSweeper struct {
	DB     *gorm.DB
	MaxAge time.Duration

	cron *cron.Cron
}

func NewOrphanSweeper(db *gorm.DB, maxAge time.Duration) *OrphanSweeper {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &OrphanSweeper{DB: db, MaxAge: maxAge, cron: cron.New()}
}

// Start schedules SweepOnce on the given cron spec ("@hourly" by default).
func (s *OrphanSweeper) Start(spec string) error {
	if spec == "" {
		spec = "@hourly"
	}
	_, err := s.cron.AddFunc(spec, func() {
		n, err := s.SweepOnce()
		if err != nil {
			log.Printf("orphan sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("orphan sweep removed %d attachments", n)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *OrphanSweeper) Stop() {
	s.cron.Stop()
}

// SweepOnce soft-deletes attachments older than MaxAge that never got
// linked to a task or an activity record.
func (s *OrphanSweeper) SweepOnce() (int64, error) {
	cutoff := time.Now().Add(-s.MaxAge)
	res := s.DB.
		Where("task_id IS NULL AND activity_record_id IS NULL AND created_at < ?", cutoff).
		Delete(&models.Attachment{})
	return res.RowsAffected, res.Error
}
