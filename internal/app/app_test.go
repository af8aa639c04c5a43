package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/config"
	"study-planner/internal/repository"
)

func TestSchedulerRegistersOnlyConfiguredJobs(t *testing.T) {
	cfg := config.Config{
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    "file:app_scheduler?mode=memory&cache=shared",
		Location:       time.UTC,
		Utilization:    config.DefaultUtilization,
		RolloverAt:     "00:05",
	}
	db, err := repository.NewDB(cfg.DatabaseDriver, cfg.DatabaseURL)
	require.NoError(t, err)
	a, err := Wire(cfg, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	scheduler, err := a.Scheduler()
	require.NoError(t, err)
	assert.Equal(t, 1, scheduler.Entries())

	a.Config.EstimateEvery = time.Minute
	scheduler, err = a.Scheduler()
	require.NoError(t, err)
	assert.Equal(t, 2, scheduler.Entries())

	assert.False(t, db.Migrator().HasTable("subscribers"))
}
