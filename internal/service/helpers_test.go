package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// monday is 2025-06-16, a Monday (weekday 0).
var monday = time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := repository.NewDB(config.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewStore(db)
}

func setHours(t *testing.T, store *repository.Store, weekday int, hours float64) {
	t.Helper()
	require.NoError(t, store.DB().Create(&model.Availability{Weekday: weekday, AvailableHours: hours}).Error)
}

func date(t *testing.T, raw string) datatypes.Date {
	t.Helper()
	d, err := model.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func minutes(v float64) *float64 {
	return &v
}

func addTask(t *testing.T, store *repository.Store, task model.Task) model.Task {
	t.Helper()
	if task.Subject == "" {
		task.Subject = "Linear algebra"
	}
	if task.Category == "" {
		task.Category = "report"
	}
	if task.Difficulty == 0 {
		task.Difficulty = 3
	}
	if time.Time(task.DueDate).IsZero() {
		task.DueDate = model.DateOf(monday.AddDate(0, 0, 7))
	}
	require.NoError(t, store.Tasks.Create(context.Background(), &task))
	return task
}

func reload(t *testing.T, store *repository.Store, id uint) *model.Task {
	t.Helper()
	task, err := store.Tasks.FindByID(context.Background(), id)
	require.NoError(t, err)
	return task
}
