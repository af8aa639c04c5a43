package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/estimator"
	"study-planner/internal/model"
)

func TestBackfillEstimatesPendingTasks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	est := estimator.Func(func(_ context.Context, f estimator.Features) (float64, error) {
		if f.Category == "unknown" {
			return 0, estimator.ErrUnavailable
		}
		return float64(f.Difficulty * 20), nil
	})
	svc := NewEstimationService(store, est, nil, "")

	pending := addTask(t, store, model.Task{Difficulty: 2})
	unknown := addTask(t, store, model.Task{Category: "unknown"})
	estimated := addTask(t, store, model.Task{PredictedTime: minutes(15)})
	finished := addTask(t, store, model.Task{TimeSpent: minutes(30), IsCompleted: true})

	result, err := svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Scanned: 2, Estimated: 1, Failed: 1}, result)

	assert.Equal(t, 40.0, *reload(t, store, pending.ID).PredictedTime)
	assert.Nil(t, reload(t, store, unknown.ID).PredictedTime)
	assert.Equal(t, 15.0, *reload(t, store, estimated.ID).PredictedTime)
	assert.Nil(t, reload(t, store, finished.ID).PredictedTime)

	again, err := svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Scanned)
	assert.Zero(t, again.Estimated)
}

func TestRetrainSwapsServedModel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	trained := estimator.NewTrained(nil)
	modelFile := filepath.Join(t.TempDir(), "model", "knn.yaml")
	svc := NewEstimationService(store, trained, trained, modelFile)

	_, ok := svc.EstimateNew(ctx, model.Task{Subject: "Physics", Category: "report", Difficulty: 3, DueDate: date(t, "2025-06-20")}, monday)
	assert.False(t, ok)

	for _, spent := range []float64{50, 60, 70} {
		addTask(t, store, model.Task{Subject: "Physics", TimeSpent: minutes(spent), IsCompleted: true})
	}
	addTask(t, store, model.Task{Subject: "Physics", TimeSpent: minutes(40), IsDeleted: true})
	addTask(t, store, model.Task{Subject: "Physics", PredictedTime: minutes(500)})

	knn, err := svc.Retrain(ctx)
	require.NoError(t, err)
	assert.Len(t, knn.Samples, 4)
	assert.Same(t, knn, trained.Model())

	got, ok := svc.EstimateNew(ctx, model.Task{Subject: "Physics", Category: "report", Difficulty: 3, DueDate: date(t, "2025-06-23")}, monday)
	require.True(t, ok)
	assert.Equal(t, 55.0, got)

	loaded, err := estimator.LoadModel(modelFile)
	require.NoError(t, err)
	assert.Equal(t, knn.Samples, loaded.Samples)
}

func TestRetrainWithoutHistoryServesEmptyModel(t *testing.T) {
	store := newTestStore(t)
	trained := estimator.NewTrained(nil)
	svc := NewEstimationService(store, trained, trained, "")

	knn, err := svc.Retrain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, knn.Samples)

	_, ok := svc.EstimateNew(context.Background(), model.Task{Subject: "x", Category: "y", Difficulty: 1}, monday)
	assert.False(t, ok)
}
