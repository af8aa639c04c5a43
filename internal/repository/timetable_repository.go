package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// TimetableRepository manages fixed weekly commitments.
type TimetableRepository struct {
	db *gorm.DB
}

func NewTimetableRepository(db *gorm.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) ListByWeekday(ctx context.Context, weekday int) ([]model.TimetableEntry, error) {
	var entries []model.TimetableEntry
	if err := r.db.WithContext(ctx).Where("weekday = ?", weekday).Order("period ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list timetable: %w", err)
	}
	return entries, nil
}

func (r *TimetableRepository) List(ctx context.Context) ([]model.TimetableEntry, error) {
	var entries []model.TimetableEntry
	if err := r.db.WithContext(ctx).Order("weekday ASC, period ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list timetable: %w", err)
	}
	return entries, nil
}

// ReplaceAll deletes every entry and inserts entries. Call it inside a transaction.
func (r *TimetableRepository) ReplaceAll(ctx context.Context, entries []model.TimetableEntry) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("1 = 1").Delete(&model.TimetableEntry{}).Error; err != nil {
		return fmt.Errorf("clear timetable: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].ID = 0
	}
	if err := db.Create(&entries).Error; err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}
