package models

import "time"

type Task struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `gorm:"default:'PREPARING';index" json:"status"`
	CustomerName string     `json:"customer_name"`
	Address      string     `json:"address"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	CreatedByID  uint       `json:"created_by_id"`
	Assignees    []User     `gorm:"many2many:task_assignments" json:"assignees,omitempty"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsAssignedTo reports whether the worker is in the task's assignment set.
// Assignees must be preloaded.
func (t *Task) IsAssignedTo(userID uint) bool {
	for _, u := range t.Assignees {
		if u.ID == userID {
			return true
		}
	}
	return false
}
