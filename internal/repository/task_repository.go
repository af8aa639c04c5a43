package repository

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"study-planner/internal/model"
)

// TaskFilter narrows FindTasks. Nil pointers are ignored.
type TaskFilter struct {
	Completed    *bool
	Deleted      *bool
	Assigned     *bool
	AssignedOn   *datatypes.Date
	HasEstimate  *bool
	HasTimeSpent *bool
	IDs          []uint
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID returns gorm.ErrRecordNotFound (wrapped) when the task does not exist.
func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, fmt.Errorf("find task %d: %w", taskID, err)
	}
	return &task, nil
}

// FindTasks lists tasks matching filter, sorted by order (e.g. "due_date ASC").
func (r *TaskRepository) FindTasks(ctx context.Context, filter TaskFilter, order string) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.Completed != nil {
		q = q.Where("is_completed = ?", *filter.Completed)
	}
	if filter.Deleted != nil {
		q = q.Where("is_deleted = ?", *filter.Deleted)
	}
	if filter.Assigned != nil {
		q = q.Where("assigned_for_today = ?", *filter.Assigned)
	}
	if filter.AssignedOn != nil {
		q = q.Where("assigned_date = ?", *filter.AssignedOn)
	}
	if filter.HasEstimate != nil {
		if *filter.HasEstimate {
			q = q.Where("predicted_time IS NOT NULL")
		} else {
			q = q.Where("predicted_time IS NULL")
		}
	}
	if filter.HasTimeSpent != nil {
		if *filter.HasTimeSpent {
			q = q.Where("time_spent IS NOT NULL")
		} else {
			q = q.Where("time_spent IS NULL")
		}
	}
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if order != "" {
		q = q.Order(order)
	}

	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	return tasks, nil
}

// ListCandidates returns tasks the allocator may assign: not finished, estimated and
// not deleted, nearest deadline first, shorter estimate first on ties.
func (r *TaskRepository) ListCandidates(ctx context.Context) ([]model.Task, error) {
	return r.FindTasks(ctx, TaskFilter{
		HasTimeSpent: boolPtr(false),
		HasEstimate:  boolPtr(true),
		Deleted:      boolPtr(false),
		Completed:    boolPtr(false),
	}, "due_date ASC, predicted_time ASC, id ASC")
}

// ListToday returns the open tasks selected for the current day.
func (r *TaskRepository) ListToday(ctx context.Context) ([]model.Task, error) {
	return r.FindTasks(ctx, TaskFilter{
		Assigned:  boolPtr(true),
		Completed: boolPtr(false),
		Deleted:   boolPtr(false),
	}, "due_date ASC, id ASC")
}

// ListRemaining returns the open tasks that were not selected for today.
func (r *TaskRepository) ListRemaining(ctx context.Context) ([]model.Task, error) {
	return r.FindTasks(ctx, TaskFilter{
		Assigned:  boolPtr(false),
		Completed: boolPtr(false),
		Deleted:   boolPtr(false),
	}, "due_date ASC, id ASC")
}

// ListUnestimated returns unfinished tasks still waiting for an estimate.
func (r *TaskRepository) ListUnestimated(ctx context.Context) ([]model.Task, error) {
	return r.FindTasks(ctx, TaskFilter{
		HasTimeSpent: boolPtr(false),
		HasEstimate:  boolPtr(false),
	}, "id ASC")
}

// ListHistory returns every task with a recorded actual duration, deleted ones included.
func (r *TaskRepository) ListHistory(ctx context.Context) ([]model.Task, error) {
	return r.FindTasks(ctx, TaskFilter{HasTimeSpent: boolPtr(true)}, "id ASC")
}

// CountAssignedOn counts tasks carrying an assignment for day.
func (r *TaskRepository) CountAssignedOn(ctx context.Context, day datatypes.Date) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("assigned_for_today = ? AND assigned_date = ?", true, day).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count assigned tasks: %w", err)
	}
	return count, nil
}

// UpdateFields writes the given columns of one task. A missing task is reported as
// gorm.ErrRecordNotFound.
func (r *TaskRepository) UpdateFields(ctx context.Context, taskID uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update task %d: %w", taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task %d: %w", taskID, gorm.ErrRecordNotFound)
	}
	return nil
}

// Assign marks tasks as selected for day. Tasks closed since they were listed
// are left untouched.
func (r *TaskRepository) Assign(ctx context.Context, taskIDs []uint, day datatypes.Date) error {
	if len(taskIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id IN ? AND is_completed = ? AND is_deleted = ? AND time_spent IS NULL", taskIDs, false, false).
		Updates(map[string]interface{}{
			"assigned_for_today": true,
			"assigned_date":      day,
		}).Error; err != nil {
		return fmt.Errorf("assign tasks: %w", err)
	}
	return nil
}

// BulkClearAssignment drops every existing assignment and returns how many were cleared.
func (r *TaskRepository) BulkClearAssignment(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("assigned_for_today = ? OR assigned_date IS NOT NULL", true).
		Updates(map[string]interface{}{
			"assigned_for_today": false,
			"assigned_date":      nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("clear assignments: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func boolPtr(v bool) *bool {
	return &v
}
