package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories bound to one connection or transaction.
type Store struct {
	db           *gorm.DB
	Tasks        *TaskRepository
	Availability *AvailabilityRepository
	Timetable    *TimetableRepository
	Allocations  *AllocationRepository
	Categories   *CategoryRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Tasks:        NewTaskRepository(db),
		Availability: NewAvailabilityRepository(db),
		Timetable:    NewTimetableRepository(db),
		Allocations:  NewAllocationRepository(db),
		Categories:   NewCategoryRepository(db),
	}
}

// Transaction runs fn with a Store bound to a single transaction.
// Any error returned by fn rolls back every write made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DB exposes the underlying handle for lifecycle management.
func (s *Store) DB() *gorm.DB {
	return s.db
}
