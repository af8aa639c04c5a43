package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"study-planner/internal/config"
	"study-planner/internal/estimator"
	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// BackfillResult summarises one batch estimation pass.
type BackfillResult struct {
	Scanned   int
	Estimated int
	Failed    int
}

// EstimationService fills PredictedTime from an estimator and retrains the
// learned model from finished tasks.
type EstimationService struct {
	store     *repository.Store
	estimator estimator.Estimator
	trained   *estimator.Trained
	neighbors int
	modelFile string
}

// NewEstimationService uses est for predictions. trained, when non-nil, is the
// model replaced by Retrain and should be part of est.
func NewEstimationService(store *repository.Store, est estimator.Estimator, trained *estimator.Trained, modelFile string) *EstimationService {
	if est == nil {
		est = estimator.Unavailable{}
	}
	return &EstimationService{
		store:     store,
		estimator: est,
		trained:   trained,
		neighbors: estimator.DefaultNeighbors,
		modelFile: modelFile,
	}
}

// FeaturesOf describes task as seen at reference time.
func FeaturesOf(task model.Task, reference time.Time) estimator.Features {
	return estimator.Features{
		Subject:       task.Subject,
		Category:      task.Category,
		Difficulty:    task.Difficulty,
		DueDate:       task.Due(),
		ReferenceTime: reference,
	}
}

// EstimateNew predicts the duration of a task that is about to be stored.
// ok is false when no estimate is available; the task is created regardless.
func (s *EstimationService) EstimateNew(ctx context.Context, task model.Task, now time.Time) (float64, bool) {
	minutes, err := s.estimator.Estimate(ctx, FeaturesOf(task, now))
	if err != nil {
		entry := config.Logger.WithFields(logrus.Fields{"subject": task.Subject, "category": task.Category})
		if errors.Is(err, estimator.ErrUnavailable) && !isJoined(err) {
			entry.Debug("no estimate for new task")
		} else {
			entry.WithError(err).Warn("estimating new task failed")
		}
		return 0, false
	}
	return minutes, true
}

// Backfill estimates every unfinished task that still has no PredictedTime, using
// its creation time as the reference. Tasks the estimator cannot handle are left
// for the next pass.
func (s *EstimationService) Backfill(ctx context.Context) (BackfillResult, error) {
	var result BackfillResult
	tasks, err := s.store.Tasks.ListUnestimated(ctx)
	if err != nil {
		return result, storeErr("list unestimated tasks", err)
	}
	result.Scanned = len(tasks)

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		minutes, err := s.estimator.Estimate(ctx, FeaturesOf(task, task.CreatedAt))
		if err != nil {
			result.Failed++
			config.Logger.WithField("task_id", task.ID).WithError(err).Debug("task left unestimated")
			continue
		}
		if err := s.store.Tasks.UpdateFields(ctx, task.ID, map[string]interface{}{"predicted_time": minutes}); err != nil {
			return result, storeErr("store estimate", err)
		}
		result.Estimated++
	}

	if result.Scanned > 0 {
		config.Logger.WithFields(logrus.Fields{
			"scanned":   result.Scanned,
			"estimated": result.Estimated,
			"failed":    result.Failed,
		}).Info("estimation pass finished")
	}
	return result, nil
}

// Retrain fits a new model from every task with a recorded duration and serves
// it. The snapshot is written to the model file when one is configured.
func (s *EstimationService) Retrain(ctx context.Context) (*estimator.KNN, error) {
	history, err := s.store.Tasks.ListHistory(ctx)
	if err != nil {
		return nil, storeErr("list history", err)
	}
	samples := make([]estimator.Sample, 0, len(history))
	for _, task := range history {
		samples = append(samples, estimator.SampleOf(FeaturesOf(task, task.CreatedAt), *task.TimeSpent))
	}
	knn := estimator.Fit(samples, s.neighbors)

	if s.trained != nil {
		s.trained.Swap(knn)
	}
	if s.modelFile != "" {
		if err := estimator.SaveModel(s.modelFile, knn); err != nil {
			return knn, err
		}
	}
	config.Logger.WithFields(logrus.Fields{
		"history": len(history),
		"samples": len(knn.Samples),
	}).Info("estimator retrained")
	return knn, nil
}

// isJoined reports whether err carries more than the plain ErrUnavailable.
func isJoined(err error) bool {
	_, ok := err.(interface{ Unwrap() []error })
	return ok
}
