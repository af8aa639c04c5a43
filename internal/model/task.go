package model

import (
	"time"

	"gorm.io/datatypes"
)

// Task is a backlog item with a deadline and an estimated duration.
// PredictedTime and TimeSpent are minutes.
type Task struct {
	ID               uint           `gorm:"primaryKey"`
	Subject          string         `gorm:"not null"`
	Category         string         `gorm:"not null"`
	Difficulty       int            `gorm:"not null"`
	DueDate          datatypes.Date `gorm:"not null;index"`
	PredictedTime    *float64
	TimeSpent        *float64
	IsCompleted      bool            `gorm:"default:false;index"`
	IsDeleted        bool            `gorm:"default:false;index"`
	AssignedForToday bool            `gorm:"default:false;index"`
	AssignedDate     *datatypes.Date `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Status is the lifecycle state derived from the persisted flags.
type Status string

const (
	StatusBacklog       Status = "backlog"
	StatusAssignedToday Status = "assigned_today"
	StatusCompleted     Status = "completed"
	StatusDeleted       Status = "deleted"
)

// Status derives the lifecycle state. InProgress is never persisted.
func (t Task) Status() Status {
	switch {
	case t.IsDeleted:
		return StatusDeleted
	case t.IsCompleted:
		return StatusCompleted
	case t.AssignedForToday:
		return StatusAssignedToday
	default:
		return StatusBacklog
	}
}

// Closed reports whether the task can no longer change state.
func (t Task) Closed() bool {
	return t.IsDeleted || t.IsCompleted
}

// HasEstimate reports whether the estimator has produced a duration for the task.
func (t Task) HasEstimate() bool {
	return t.PredictedTime != nil
}

// Due returns the due date as time.Time.
func (t Task) Due() time.Time {
	return time.Time(t.DueDate)
}
