package service

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/repository"
)

const (
	// MinRemainingMinutes is the smallest estimate a partially finished task keeps.
	MinRemainingMinutes = 10.0

	MinDifficulty = 1
	MaxDifficulty = 5
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Subject    string
	Category   string
	Difficulty int
	DueDate    datatypes.Date
}

// DayTrigger regenerates today's allocation when it is missing.
type DayTrigger interface {
	EnsureToday(ctx context.Context, now time.Time) (*AllocationResult, error)
}

// TaskService drives a task through creation, partial and full completion and
// soft deletion.
type TaskService struct {
	store     *repository.Store
	estimates *EstimationService
	trigger   DayTrigger
	now       func() time.Time
}

func NewTaskService(store *repository.Store, estimates *EstimationService, trigger DayTrigger) *TaskService {
	return &TaskService{store: store, estimates: estimates, trigger: trigger, now: time.Now}
}

// ParseTaskInput validates raw form values for a new task.
func ParseTaskInput(subject, category, difficulty, dueDate string) (TaskInput, error) {
	d, err := strconv.Atoi(strings.TrimSpace(difficulty))
	if err != nil {
		return TaskInput{}, invalid("difficulty", "%q is not an integer", difficulty)
	}
	return NewTaskInput(subject, category, d, dueDate)
}

// NewTaskInput validates typed values for a new task; dueDate is YYYY-MM-DD.
func NewTaskInput(subject, category string, difficulty int, dueDate string) (TaskInput, error) {
	due, err := model.ParseDate(strings.TrimSpace(dueDate))
	if err != nil {
		return TaskInput{}, invalid("due_date", "%q is not a YYYY-MM-DD date", dueDate)
	}
	input := TaskInput{
		Subject:    strings.TrimSpace(subject),
		Category:   strings.TrimSpace(category),
		Difficulty: difficulty,
		DueDate:    due,
	}
	return input, input.Validate()
}

func (in TaskInput) Validate() error {
	if in.Subject == "" {
		return invalid("subject", "is required")
	}
	if in.Category == "" {
		return invalid("category", "is required")
	}
	if in.Difficulty < MinDifficulty || in.Difficulty > MaxDifficulty {
		return invalid("difficulty", "must be within %d..%d, got %d", MinDifficulty, MaxDifficulty, in.Difficulty)
	}
	if time.Time(in.DueDate).IsZero() {
		return invalid("due_date", "is required")
	}
	return nil
}

// ParseFinishInput validates the reported actual duration.
func ParseFinishInput(timeSpent string) (float64, error) {
	return parseMinutes(timeSpent)
}

// ParsePartialInput validates a progress report: an integer percent in 0..100 and
// the minutes spent in this session.
func ParsePartialInput(progress, timeSpent string) (int, float64, error) {
	percent, err := strconv.Atoi(strings.TrimSpace(progress))
	if err != nil {
		return 0, 0, invalid("progress", "%q is not an integer", progress)
	}
	if percent < 0 || percent > 100 {
		return 0, 0, invalid("progress", "must be within 0..100, got %d", percent)
	}
	minutes, err := parseMinutes(timeSpent)
	if err != nil {
		return 0, 0, err
	}
	return percent, minutes, nil
}

func parseMinutes(raw string) (float64, error) {
	minutes, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, invalid("time_spent", "%q is not a number", raw)
	}
	return minutes, validateMinutes(minutes)
}

func validateMinutes(minutes float64) error {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		return invalid("time_spent", "must be a non-negative number of minutes")
	}
	return nil
}

// PartialProgress returns the estimate left after reporting percent progress on a
// task estimated at original minutes. At least MinRemainingMinutes is kept.
func PartialProgress(original float64, percent int) float64 {
	return math.Max(original*(1-float64(percent)/100), MinRemainingMinutes)
}

// CreateTask stores a new task, estimating its duration once. An unavailable
// estimate leaves PredictedTime empty for the batch pass.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	task := model.Task{
		Subject:    input.Subject,
		Category:   input.Category,
		Difficulty: input.Difficulty,
		DueDate:    input.DueDate,
		CreatedAt:  now,
	}
	if s.estimates != nil {
		if minutes, ok := s.estimates.EstimateNew(ctx, task, now); ok {
			task.PredictedTime = &minutes
		}
	}

	if err := s.store.Tasks.Create(ctx, &task); err != nil {
		return nil, storeErr("create task", err)
	}

	config.Logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"due_date":  model.FormatDate(task.DueDate),
		"estimated": task.PredictedTime != nil,
	}).Info("task created")

	s.ensureToday(ctx, now)
	return &task, nil
}

// GetTask returns a visible task. Deleted tasks are reported as not found.
func (s *TaskService) GetTask(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, storeErr("get task", err)
	}
	if task.IsDeleted {
		return nil, ErrNotFound
	}
	return task, nil
}

// StartTask opens a task for work. Nothing is persisted: the in-progress state
// lives in the caller's UI.
func (s *TaskService) StartTask(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsCompleted {
		return nil, ErrTaskClosed
	}
	return task, nil
}

// FinishTask records the actual duration and closes the task.
func (s *TaskService) FinishTask(ctx context.Context, taskID uint, timeSpent float64) (*model.Task, error) {
	if err := validateMinutes(timeSpent); err != nil {
		return nil, err
	}
	task, err := s.transition(ctx, "finish task", taskID, func(task *model.Task) map[string]interface{} {
		return completionFields(task, timeSpent)
	})
	if err != nil {
		return nil, err
	}
	config.Logger.WithFields(logrus.Fields{"task_id": taskID, "time_spent": timeSpent}).Info("task finished")
	return task, nil
}

// PartialFinish records progress. Below 100 percent only the estimate shrinks and
// the task stays in the pool; at 100 percent the task is completed as well.
func (s *TaskService) PartialFinish(ctx context.Context, taskID uint, percent int, timeSpent float64) (*model.Task, error) {
	if percent < 0 || percent > 100 {
		return nil, invalid("progress", "must be within 0..100, got %d", percent)
	}
	if err := validateMinutes(timeSpent); err != nil {
		return nil, err
	}

	task, err := s.transition(ctx, "partial finish task", taskID, func(task *model.Task) map[string]interface{} {
		var original float64
		if task.PredictedTime != nil {
			original = *task.PredictedTime
		}
		remaining := PartialProgress(original, percent)
		task.PredictedTime = &remaining
		if percent < 100 {
			return map[string]interface{}{"predicted_time": remaining}
		}
		fields := completionFields(task, timeSpent)
		fields["predicted_time"] = remaining
		return fields
	})
	if err != nil {
		return nil, err
	}
	config.Logger.WithFields(logrus.Fields{
		"task_id":        taskID,
		"progress":       percent,
		"predicted_time": *task.PredictedTime,
		"completed":      task.IsCompleted,
	}).Info("task progress recorded")
	return task, nil
}

// DeleteTask soft-deletes an open task and drops its assignment.
func (s *TaskService) DeleteTask(ctx context.Context, taskID uint) error {
	_, err := s.transition(ctx, "delete task", taskID, func(task *model.Task) map[string]interface{} {
		task.IsDeleted = true
		task.AssignedForToday = false
		task.AssignedDate = nil
		return map[string]interface{}{
			"is_deleted":         true,
			"assigned_for_today": false,
			"assigned_date":      nil,
		}
	})
	if err != nil {
		return err
	}
	config.Logger.WithField("task_id", taskID).Info("task deleted")
	return nil
}

// transition loads an open task and writes the fields returned by change in one
// transaction. change may update task in place to mirror the write.
func (s *TaskService) transition(ctx context.Context, op string, taskID uint, change func(task *model.Task) map[string]interface{}) (*model.Task, error) {
	var updated *model.Task
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		task, err := tx.Tasks.FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.IsDeleted {
			return ErrNotFound
		}
		if task.IsCompleted {
			return ErrTaskClosed
		}
		fields := change(task)
		if err := tx.Tasks.UpdateFields(ctx, taskID, fields); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return updated, nil
}

// completionFields closes a task: a completed task never keeps its assignment.
func completionFields(task *model.Task, timeSpent float64) map[string]interface{} {
	task.TimeSpent = &timeSpent
	task.IsCompleted = true
	task.AssignedForToday = false
	task.AssignedDate = nil
	return map[string]interface{}{
		"time_spent":         timeSpent,
		"is_completed":       true,
		"assigned_for_today": false,
		"assigned_date":      nil,
	}
}

func (s *TaskService) ensureToday(ctx context.Context, now time.Time) {
	if s.trigger == nil {
		return
	}
	if _, err := s.trigger.EnsureToday(ctx, now); err != nil {
		config.Logger.WithError(err).Warn("allocation after task change failed")
	}
}
