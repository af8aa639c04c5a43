package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// ErrAlreadyAllocated is returned by Create when a marker for the date exists.
var ErrAlreadyAllocated = errors.New("allocation already generated for date")

// AllocationRepository stores one marker row per allocated day.
type AllocationRepository struct {
	db *gorm.DB
}

func NewAllocationRepository(db *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// FindByDate returns nil without error when the day has no marker.
func (r *AllocationRepository) FindByDate(ctx context.Context, date string) (*model.AllocationRun, error) {
	var run model.AllocationRun
	err := r.db.WithContext(ctx).Where("date = ?", date).First(&run).Error
	switch {
	case err == nil:
		return &run, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find allocation run: %w", err)
	}
}

// Latest returns the most recent marker or nil.
func (r *AllocationRepository) Latest(ctx context.Context) (*model.AllocationRun, error) {
	var run model.AllocationRun
	err := r.db.WithContext(ctx).Order("date DESC").First(&run).Error
	switch {
	case err == nil:
		return &run, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find latest allocation run: %w", err)
	}
}

func (r *AllocationRepository) Create(ctx context.Context, run *model.AllocationRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create allocation run %s: %w", run.Date, ErrAlreadyAllocated)
		}
		return fmt.Errorf("create allocation run: %w", err)
	}
	return nil
}

func (r *AllocationRepository) DeleteByDate(ctx context.Context, date string) error {
	if err := r.db.WithContext(ctx).Where("date = ?", date).Delete(&model.AllocationRun{}).Error; err != nil {
		return fmt.Errorf("delete allocation run: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// sqlite: "UNIQUE constraint failed", postgres: "duplicate key value" (SQLSTATE 23505).
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
