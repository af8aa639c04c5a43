package model

import "time"

// Availability is the time budget for one weekday (0 = Monday ... 6 = Sunday).
type Availability struct {
	ID             uint `gorm:"primaryKey"`
	Weekday        int  `gorm:"uniqueIndex"`
	AvailableHours float64
}

// TableName keeps the table name used since the first schema.
func (Availability) TableName() string { return "available_time" }

// TimetableEntry is a fixed weekly commitment, shown next to the day plan.
type TimetableEntry struct {
	ID      uint   `gorm:"primaryKey"`
	Weekday int    `gorm:"not null;index"`
	Period  int    `gorm:"not null"`
	Subject string `gorm:"not null"`
}

func (TimetableEntry) TableName() string { return "timetable" }

// AllocationRun marks that the allocation for Date has been generated.
// Date is unique: a second run for the same day fails on insert.
type AllocationRun struct {
	ID            uint   `gorm:"primaryKey"`
	Date          string `gorm:"size:10;uniqueIndex"`
	Weekday       int
	LimitMinutes  int
	TotalMinutes  float64
	AssignedCount int
	CreatedAt     time.Time
}
