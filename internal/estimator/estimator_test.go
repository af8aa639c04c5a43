package estimator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var reference = time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC)

func features(subject, category string, difficulty, dueInDays int) Features {
	return Features{
		Subject:       subject,
		Category:      category,
		Difficulty:    difficulty,
		DueDate:       time.Date(2025, 6, 16+dueInDays, 0, 0, 0, 0, time.UTC),
		ReferenceTime: reference,
	}
}

func TestFeatures(t *testing.T) {
	f := features("a", "b", 1, 4)
	assert.Equal(t, 3, f.DaysUntilDue())
	assert.Equal(t, 0, f.Weekday())

	f.ReferenceTime = time.Date(2025, 6, 22, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 6, f.Weekday())
	assert.Equal(t, -3, f.DaysUntilDue())
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	failing := Func(func(context.Context, Features) (float64, error) { return 0, boom })
	fixed := Func(func(context.Context, Features) (float64, error) { return 42, nil })

	got, err := Chain{Unavailable{}, failing, fixed}.Estimate(ctx, Features{})
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)

	_, err = Chain{Unavailable{}}.Estimate(ctx, Features{})
	assert.Equal(t, ErrUnavailable, err)

	_, err = Chain{failing, Unavailable{}}.Estimate(ctx, Features{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, boom)

	_, err = Chain{}.Estimate(ctx, Features{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestKNN(t *testing.T) {
	ctx := context.Background()
	samples := []Sample{
		SampleOf(features("Physics", "report", 3, 5), 100),
		SampleOf(features("physics ", "Report", 3, 6), 120),
		SampleOf(features("History", "essay", 1, 2), 20),
		SampleOf(features("History", "essay", 2, 2), 0),
	}
	model := Fit(samples, 2)
	assert.Len(t, model.Samples, 3)

	got, err := model.Estimate(ctx, features("PHYSICS", "report", 3, 5))
	require.NoError(t, err)
	assert.Equal(t, 110.0, got)

	got, err = model.Estimate(ctx, features("History", "essay", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 60.0, got)

	var empty *KNN
	_, err = empty.Estimate(ctx, Features{})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = Fit(nil, 0).Estimate(ctx, Features{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestKNNEstimateStaysWithinSampleRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		samples := make([]Sample, n)
		lo, hi := 1e9, 0.0
		for i := range samples {
			m := rapid.Float64Range(1, 600).Draw(t, "minutes")
			if m < lo {
				lo = m
			}
			if m > hi {
				hi = m
			}
			samples[i] = Sample{
				Subject:    rapid.SampledFrom([]string{"a", "b", "c"}).Draw(t, "subject"),
				Category:   rapid.SampledFrom([]string{"x", "y"}).Draw(t, "category"),
				Difficulty: rapid.IntRange(1, 5).Draw(t, "difficulty"),
				Minutes:    m,
			}
		}
		model := Fit(samples, rapid.IntRange(1, 7).Draw(t, "k"))
		got, err := model.Estimate(context.Background(), features("a", "x", 3, 2))
		if err != nil {
			t.Fatalf("estimate: %v", err)
		}
		// Rounding to one decimal may move the mean by at most 0.05.
		if got < lo-0.05 || got > hi+0.05 {
			t.Fatalf("estimate %v outside [%v, %v]", got, lo, hi)
		}
	})
}

func TestTrainedSwapAndSnapshot(t *testing.T) {
	ctx := context.Background()
	trained := NewTrained(nil)
	_, err := trained.Estimate(ctx, Features{})
	assert.ErrorIs(t, err, ErrUnavailable)

	model := Fit([]Sample{{Subject: "a", Category: "x", Difficulty: 2, Minutes: 30}}, 3)
	trained.Swap(model)
	got, err := trained.Estimate(ctx, features("a", "x", 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 30.0, got)

	path := filepath.Join(t.TempDir(), "nested", "model.yaml")
	require.NoError(t, SaveModel(path, model))
	loaded, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, model, loaded)

	assert.Error(t, SaveModel(path, nil))
	_, err = LoadModel(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
default_minutes: 60
difficulty_step: 0.25
categories:
  Report: 120
subjects:
  " Linear Algebra ": 1.5
`))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := rules.Estimate(ctx, features("linear algebra", "report", 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 180.0, got)

	got, err = rules.Estimate(ctx, features("Art", "essay", 5, 1))
	require.NoError(t, err)
	assert.Equal(t, 90.0, got)

	empty, err := ParseRules([]byte("categories: {}\n"))
	require.NoError(t, err)
	_, err = empty.Estimate(ctx, features("Art", "essay", 3, 1))
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = ParseRules([]byte("categories: [1, 2"))
	assert.Error(t, err)
}

func TestRoundKeepsOneMinute(t *testing.T) {
	assert.Equal(t, 1.0, round1(0.2))
	assert.Equal(t, 12.3, round1(12.34))
	assert.True(t, valid(0.5))
	assert.False(t, valid(0))
}
