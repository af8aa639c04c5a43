// Package app builds the planner's services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"gorm.io/gorm"

	"study-planner/internal/config"
	"study-planner/internal/estimator"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

// App holds the wired services of one process.
type App struct {
	Config     config.Config
	DB         *gorm.DB
	Store      *repository.Store
	Trained    *estimator.Trained
	Allocator  *service.Allocator
	Estimation *service.EstimationService
	Tasks      *service.TaskService
	Plans      *service.PlanService
	Settings   *service.SettingsService
}

// New opens the database and wires every service.
func New(cfg config.Config) (*App, error) {
	db, err := repository.NewDB(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return Wire(cfg, db)
}

// Wire builds the services on an already opened database.
func Wire(cfg config.Config, db *gorm.DB) (*App, error) {
	trained, est, err := buildEstimator(cfg)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db)
	allocator := service.NewAllocator(store, cfg.Location, cfg.Utilization)
	estimation := service.NewEstimationService(store, est, trained, cfg.ModelFile)

	return &App{
		Config:     cfg,
		DB:         db,
		Store:      store,
		Trained:    trained,
		Allocator:  allocator,
		Estimation: estimation,
		Tasks:      service.NewTaskService(store, estimation, allocator),
		Plans:      service.NewPlanService(store, cfg.Location, cfg.Utilization),
		Settings:   service.NewSettingsService(store, allocator),
	}, nil
}

// buildEstimator chains the learned model with the optional rule table.
func buildEstimator(cfg config.Config) (*estimator.Trained, estimator.Estimator, error) {
	var model *estimator.KNN
	if cfg.ModelFile != "" {
		loaded, err := estimator.LoadModel(cfg.ModelFile)
		switch {
		case err == nil:
			model = loaded
		case errors.Is(err, fs.ErrNotExist):
			config.Logger.WithField("path", cfg.ModelFile).Info("no model snapshot yet")
		default:
			return nil, nil, err
		}
	}
	trained := estimator.NewTrained(model)
	chain := estimator.Chain{trained}

	if cfg.RulesFile != "" {
		rules, err := estimator.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, nil, fmt.Errorf("estimator rules: %w", err)
		}
		chain = append(chain, rules)
	}
	return trained, chain, nil
}

// Warmup trains the model when none was loaded and fills missing estimates.
func (a *App) Warmup(ctx context.Context) {
	if a.Trained.Model() == nil {
		if _, err := a.Estimation.Retrain(ctx); err != nil {
			config.Logger.WithError(err).Warn("initial training failed")
		}
	}
	if _, err := a.Estimation.Backfill(ctx); err != nil {
		config.Logger.WithError(err).Warn("initial estimation pass failed")
	}
}

// Scheduler registers the background jobs enabled in the configuration.
func (a *App) Scheduler() (*service.SchedulerService, error) {
	scheduler := service.NewSchedulerService(a.Config.Location)

	if a.Config.EstimateEvery > 0 {
		if _, err := scheduler.ScheduleInterval(a.Config.EstimateEvery, "estimate", func(ctx context.Context) error {
			_, err := a.Estimation.Backfill(ctx)
			return err
		}); err != nil {
			return nil, fmt.Errorf("schedule estimation: %w", err)
		}
	}
	if a.Config.RetrainEvery > 0 {
		if _, err := scheduler.ScheduleInterval(a.Config.RetrainEvery, "retrain", func(ctx context.Context) error {
			_, err := a.Estimation.Retrain(ctx)
			return err
		}); err != nil {
			return nil, fmt.Errorf("schedule retrain: %w", err)
		}
	}
	if a.Config.RolloverAt != "" {
		if _, err := scheduler.ScheduleDaily(a.Config.RolloverAt, "rollover", func(ctx context.Context) error {
			_, err := a.Allocator.EnsureToday(ctx, time.Now())
			return err
		}); err != nil {
			return nil, fmt.Errorf("schedule rollover: %w", err)
		}
	}
	return scheduler, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
