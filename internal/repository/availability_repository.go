package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// AvailabilityRepository manages the weekly time budget.
type AvailabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// HoursFor returns the budget for weekday. found is false when no row exists.
func (r *AvailabilityRepository) HoursFor(ctx context.Context, weekday int) (hours float64, found bool, err error) {
	var row model.Availability
	err = r.db.WithContext(ctx).Where("weekday = ?", weekday).First(&row).Error
	switch {
	case err == nil:
		return row.AvailableHours, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("find availability: %w", err)
	}
}

func (r *AvailabilityRepository) List(ctx context.Context) ([]model.Availability, error) {
	var rows []model.Availability
	if err := r.db.WithContext(ctx).Order("weekday ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return rows, nil
}

// ReplaceAll deletes every row and inserts rows. Call it inside a transaction.
func (r *AvailabilityRepository) ReplaceAll(ctx context.Context, rows []model.Availability) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("1 = 1").Delete(&model.Availability{}).Error; err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].ID = 0
	}
	if err := db.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert availability: %w", err)
	}
	return nil
}
