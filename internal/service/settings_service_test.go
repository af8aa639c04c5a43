package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/model"
)

func newSettingsService(t *testing.T) (*SettingsService, *Allocator) {
	t.Helper()
	store := newTestStore(t)
	alloc := NewAllocator(store, time.UTC, 85)
	svc := NewSettingsService(store, alloc)
	svc.now = func() time.Time { return monday }
	return svc, alloc
}

func TestSettingsValidate(t *testing.T) {
	valid := Settings{Hours: DefaultHours, Timetable: DefaultTimetable()}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(s *Settings)
		field  string
	}{
		{"negative hours", func(s *Settings) { s.Hours[2] = -1 }, "hours"},
		{"too many hours", func(s *Settings) { s.Hours[6] = 25 }, "hours"},
		{"nan hours", func(s *Settings) { s.Hours[0] = math.NaN() }, "hours"},
		{"bad weekday", func(s *Settings) { s.Timetable = []model.TimetableEntry{{Weekday: 7, Period: 1, Subject: "x"}} }, "timetable"},
		{"bad period", func(s *Settings) { s.Timetable = []model.TimetableEntry{{Weekday: 1, Period: 0, Subject: "x"}} }, "timetable"},
		{"blank subject", func(s *Settings) { s.Timetable = []model.TimetableEntry{{Weekday: 1, Period: 1, Subject: "  "}} }, "timetable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settings{Hours: DefaultHours}
			tt.mutate(&s)
			err := s.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSaveReplacesSettingsAndReallocates(t *testing.T) {
	ctx := context.Background()
	svc, alloc := newSettingsService(t)
	store := svc.store
	setHours(t, store, 0, 1)

	a := addTask(t, store, model.Task{DueDate: date(t, "2025-06-17"), PredictedTime: minutes(40)})
	b := addTask(t, store, model.Task{DueDate: date(t, "2025-06-18"), PredictedTime: minutes(40)})
	first, err := alloc.EnsureToday(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, []uint{a.ID}, first.Assigned)

	hours := DefaultHours
	hours[0] = 2
	result, err := svc.Save(ctx, Settings{
		Hours:     hours,
		Timetable: []model.TimetableEntry{{Weekday: 0, Period: 2, Subject: " Physics "}},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 102, result.LimitMinutes)
	assert.Equal(t, []uint{a.ID, b.ID}, result.Assigned)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, hours, got.Hours)
	require.Len(t, got.Timetable, 1)
	assert.Equal(t, "Physics", got.Timetable[0].Subject)
}

type failingReallocator struct{}

func (failingReallocator) Reallocate(context.Context, time.Time) (*AllocationResult, error) {
	return nil, &StoreError{Op: "allocate", Err: errors.New("connection reset")}
}

func (failingReallocator) Location() *time.Location { return time.UTC }

func TestSaveDropsTodaysMarkerEvenWhenReallocationFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	setHours(t, store, 0, 6)
	task := addTask(t, store, model.Task{PredictedTime: minutes(60)})

	alloc := NewAllocator(store, time.UTC, 85)
	first, err := alloc.EnsureToday(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, []uint{task.ID}, first.Assigned)

	svc := NewSettingsService(store, failingReallocator{})
	svc.now = func() time.Time { return monday }
	_, err = svc.SaveHours(ctx, DefaultHours)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	run, err := store.Allocations.FindByDate(ctx, "2025-06-16")
	require.NoError(t, err)
	assert.Nil(t, run)

	again, err := alloc.EnsureToday(ctx, monday.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, again.Skipped)
	assert.Equal(t, []uint{task.ID}, again.Assigned)
	assert.True(t, reload(t, store, task.ID).AssignedForToday)
}

func TestSaveRejectsInvalidSettingsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSettingsService(t)
	setHours(t, svc.store, 0, 3)

	hours := DefaultHours
	hours[3] = 30
	_, err := svc.Save(ctx, Settings{Hours: hours})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Hours[0])
	assert.Zero(t, got.Hours[3])
}

func TestSaveHoursKeepsTimetable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSettingsService(t)

	_, err := svc.SaveTimetable(ctx, []model.TimetableEntry{{Weekday: 2, Period: 1, Subject: "Chemistry"}})
	require.NoError(t, err)
	_, err = svc.SaveHours(ctx, [7]float64{1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, [7]float64{1, 2, 3, 4, 5, 6, 7}, got.Hours)
	require.Len(t, got.Timetable, 1)
	assert.Equal(t, "Chemistry", got.Timetable[0].Subject)
}

func TestSeedOnlyOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSettingsService(t)

	seeded, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultHours, got.Hours)
	assert.Len(t, got.Timetable, 21)

	_, err = svc.SaveHours(ctx, [7]float64{})
	require.NoError(t, err)
	seeded, err = svc.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	got, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, [7]float64{}, got.Hours)
}
