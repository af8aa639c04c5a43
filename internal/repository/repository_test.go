package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"study-planner/internal/config"
	"study-planner/internal/model"
)

var day = model.DateOf(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))

func newStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDB(config.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(db)
}

func ptr(v float64) *float64 { return &v }

func create(t *testing.T, s *Store, task model.Task) model.Task {
	t.Helper()
	if task.Subject == "" {
		task.Subject = "Physics"
	}
	if task.Category == "" {
		task.Category = "report"
	}
	if task.Difficulty == 0 {
		task.Difficulty = 2
	}
	if time.Time(task.DueDate).IsZero() {
		task.DueDate = day
	}
	require.NoError(t, s.Tasks.Create(context.Background(), &task))
	return task
}

func TestListCandidates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	later := create(t, s, model.Task{DueDate: model.DateOf(time.Time(day).AddDate(0, 0, 3)), PredictedTime: ptr(30)})
	long := create(t, s, model.Task{PredictedTime: ptr(90)})
	short := create(t, s, model.Task{PredictedTime: ptr(20)})
	create(t, s, model.Task{})
	create(t, s, model.Task{PredictedTime: ptr(10), IsDeleted: true})
	create(t, s, model.Task{PredictedTime: ptr(10), TimeSpent: ptr(10), IsCompleted: true})

	tasks, err := s.Tasks.ListCandidates(ctx)
	require.NoError(t, err)
	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []uint{short.ID, long.ID, later.ID}, ids)
}

func TestAssignAndClear(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a := create(t, s, model.Task{PredictedTime: ptr(10)})
	b := create(t, s, model.Task{PredictedTime: ptr(10)})

	require.NoError(t, s.Tasks.Assign(ctx, []uint{a.ID, b.ID}, day))
	require.NoError(t, s.Tasks.Assign(ctx, nil, day))

	count, err := s.Tasks.CountAssignedOn(ctx, day)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	today, err := s.Tasks.ListToday(ctx)
	require.NoError(t, err)
	assert.Len(t, today, 2)

	cleared, err := s.Tasks.BulkClearAssignment(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cleared)

	count, err = s.Tasks.CountAssignedOn(ctx, day)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAssignSkipsClosedTasks(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	open := create(t, s, model.Task{PredictedTime: ptr(10)})
	done := create(t, s, model.Task{PredictedTime: ptr(10), TimeSpent: ptr(12), IsCompleted: true})
	deleted := create(t, s, model.Task{PredictedTime: ptr(10), IsDeleted: true})

	require.NoError(t, s.Tasks.Assign(ctx, []uint{open.ID, done.ID, deleted.ID}, day))

	count, err := s.Tasks.CountAssignedOn(ctx, day)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	for _, id := range []uint{done.ID, deleted.ID} {
		task, err := s.Tasks.FindByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, task.AssignedForToday, "task %d", id)
		assert.Nil(t, task.AssignedDate, "task %d", id)
	}
}

func TestUpdateFieldsMissingTask(t *testing.T) {
	s := newStore(t)
	err := s.Tasks.UpdateFields(context.Background(), 404, map[string]interface{}{"predicted_time": 1.0})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = s.Tasks.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAllocationMarkerIsUnique(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	run, err := s.Allocations.FindByDate(ctx, "2025-06-16")
	require.NoError(t, err)
	assert.Nil(t, run)

	require.NoError(t, s.Allocations.Create(ctx, &model.AllocationRun{Date: "2025-06-16", LimitMinutes: 306}))
	err = s.Allocations.Create(ctx, &model.AllocationRun{Date: "2025-06-16"})
	assert.ErrorIs(t, err, ErrAlreadyAllocated)

	latest, err := s.Allocations.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 306, latest.LimitMinutes)

	require.NoError(t, s.Allocations.DeleteByDate(ctx, "2025-06-16"))
	run, err = s.Allocations.FindByDate(ctx, "2025-06-16")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestTransactionRollsBack(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	task := create(t, s, model.Task{PredictedTime: ptr(10)})

	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.Tasks.Assign(ctx, []uint{task.ID}, day); err != nil {
			return err
		}
		return tx.Allocations.Create(ctx, &model.AllocationRun{Date: "2025-06-16"})
	})
	require.NoError(t, err)

	err = s.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.Tasks.BulkClearAssignment(ctx); err != nil {
			return err
		}
		return tx.Allocations.Create(ctx, &model.AllocationRun{Date: "2025-06-16"})
	})
	assert.ErrorIs(t, err, ErrAlreadyAllocated)

	reloaded, err := s.Tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.AssignedForToday)
}

func TestAvailabilityAndTimetable(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	hours, found, err := s.Availability.HoursFor(ctx, 2)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, hours)

	require.NoError(t, s.Availability.ReplaceAll(ctx, []model.Availability{{Weekday: 2, AvailableHours: 5.5}}))
	require.NoError(t, s.Availability.ReplaceAll(ctx, []model.Availability{{Weekday: 2, AvailableHours: 4}, {Weekday: 3, AvailableHours: 1}}))
	hours, found, err = s.Availability.HoursFor(ctx, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 4.0, hours)

	require.NoError(t, s.Timetable.ReplaceAll(ctx, []model.TimetableEntry{
		{Weekday: 1, Period: 2, Subject: "B"},
		{Weekday: 1, Period: 1, Subject: "A"},
		{Weekday: 4, Period: 1, Subject: "C"},
	}))
	entries, err := s.Timetable.ListByWeekday(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Subject)

	all, err := s.Timetable.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCategoriesListUsed(t *testing.T) {
	s := newStore(t)
	create(t, s, model.Task{Category: "lab"})
	create(t, s, model.Task{Category: "essay"})
	create(t, s, model.Task{Category: "essay"})
	create(t, s, model.Task{Category: "exam", IsDeleted: true})

	names, err := s.Categories.ListUsed(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"essay", "lab"}, names)

	names, err = s.Categories.ListUsed(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"essay"}, names)
}

func TestOpenDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := openDialector("mysql", "dsn")
	assert.Error(t, err)
	_, err = openDialector(config.DriverPostgres, "")
	assert.Error(t, err)
}
