package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/model"
)

func TestTodayPlan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	setHours(t, store, 0, 6)
	require.NoError(t, store.Timetable.ReplaceAll(ctx, []model.TimetableEntry{
		{Weekday: 0, Period: 2, Subject: "Physics"},
		{Weekday: 0, Period: 1, Subject: "Algebra"},
		{Weekday: 1, Period: 1, Subject: "History"},
	}))

	today := model.DateOf(monday)
	a := addTask(t, store, model.Task{PredictedTime: minutes(45), AssignedForToday: true, AssignedDate: &today})
	b := addTask(t, store, model.Task{PredictedTime: minutes(30.5), AssignedForToday: true, AssignedDate: &today})
	rest := addTask(t, store, model.Task{DueDate: date(t, "2025-06-30")})
	addTask(t, store, model.Task{IsDeleted: true})
	addTask(t, store, model.Task{TimeSpent: minutes(10), IsCompleted: true})

	plan, err := NewPlanService(store, time.UTC, 85).Today(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-16", plan.Date)
	assert.Equal(t, 0, plan.Weekday)
	assert.Equal(t, 306, plan.LimitMinutes)
	assert.Equal(t, 75.5, plan.AssignedMinutes)
	require.Len(t, plan.Today, 2)
	assert.Equal(t, a.ID, plan.Today[0].ID)
	assert.Equal(t, b.ID, plan.Today[1].ID)
	require.Len(t, plan.Remaining, 1)
	assert.Equal(t, rest.ID, plan.Remaining[0].ID)
	require.Len(t, plan.Timetable, 2)
	assert.Equal(t, "Algebra", plan.Timetable[0].Subject)
}

func TestBacklogAndCategories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	late := addTask(t, store, model.Task{Category: "lab", DueDate: date(t, "2025-07-01")})
	soon := addTask(t, store, model.Task{Category: "report", DueDate: date(t, "2025-06-18")})
	addTask(t, store, model.Task{Category: "report"})
	addTask(t, store, model.Task{Category: "exam", IsDeleted: true})
	addTask(t, store, model.Task{Category: "report", TimeSpent: minutes(5), IsCompleted: true})

	svc := NewPlanService(store, time.UTC, 85)
	backlog, err := svc.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, backlog, 3)
	assert.Equal(t, soon.ID, backlog[0].ID)
	assert.Equal(t, late.ID, backlog[2].ID)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"report", "lab"}, categories)
}

func TestFormatDayPlan(t *testing.T) {
	plan := &DayPlan{
		Date:            "2025-06-16",
		Weekday:         0,
		LimitMinutes:    306,
		AssignedMinutes: 120,
		Timetable:       []model.TimetableEntry{{Weekday: 0, Period: 1, Subject: "Algebra"}},
		Today: []model.Task{
			{ID: 7, Subject: "Essay <draft>", Category: "report", Difficulty: 2, DueDate: model.DateOf(monday.AddDate(0, 0, 1)), PredictedTime: minutes(120)},
		},
		Remaining: []model.Task{
			{ID: 8, Subject: "Old lab", Category: "lab", Difficulty: 4, DueDate: model.DateOf(monday.AddDate(0, 0, -2))},
		},
	}

	text := FormatDayPlan(plan, monday)
	assert.Contains(t, text, "2025-06-16, Понедельник")
	assert.Contains(t, text, "120 из 306 мин.")
	assert.Contains(t, text, "1. Algebra")
	assert.Contains(t, text, "<b>#7</b> Essay &lt;draft&gt;")
	assert.Contains(t, text, "≈120 мин.")
	assert.Contains(t, text, "осталось 1 дн.")
	assert.Contains(t, text, "просрочено")
	assert.Contains(t, text, "оценка ещё не готова")

	empty := FormatDayPlan(&DayPlan{Date: "2025-06-22", Weekday: 6}, monday)
	assert.Contains(t, empty, "Воскресенье")
	assert.Contains(t, empty, "ничего не назначено")
}

func TestWeekdayName(t *testing.T) {
	assert.Equal(t, "Понедельник", WeekdayName(0))
	assert.Equal(t, "Воскресенье", WeekdayName(6))
	assert.Equal(t, "?", WeekdayName(7))
}
