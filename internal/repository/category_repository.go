package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// CategoryRepository reads the categories used by open tasks. Categories are
// free text on the task row and have no table of their own.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// ListUsed returns distinct categories of tasks that are not deleted, most used first.
func (r *CategoryRepository) ListUsed(ctx context.Context, limit int) ([]string, error) {
	var names []string
	q := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("is_deleted = ?", false).
		Group("category").
		Order("COUNT(*) DESC, category ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("category", &names).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return names, nil
}
