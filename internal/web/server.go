package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/service"
)

// TaskManager is the lifecycle surface used by the task handlers.
type TaskManager interface {
	CreateTask(ctx context.Context, input service.TaskInput) (*model.Task, error)
	GetTask(ctx context.Context, taskID uint) (*model.Task, error)
	StartTask(ctx context.Context, taskID uint) (*model.Task, error)
	FinishTask(ctx context.Context, taskID uint, timeSpent float64) (*model.Task, error)
	PartialFinish(ctx context.Context, taskID uint, percent int, timeSpent float64) (*model.Task, error)
	DeleteTask(ctx context.Context, taskID uint) error
}

// PlanViewer serves the read-only views.
type PlanViewer interface {
	Today(ctx context.Context, now time.Time) (*service.DayPlan, error)
	Backlog(ctx context.Context) ([]model.Task, error)
}

// SettingsEditor reads and writes the weekly configuration.
type SettingsEditor interface {
	Get(ctx context.Context) (*service.Settings, error)
	Save(ctx context.Context, in service.Settings) (*service.AllocationResult, error)
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Tasks    TaskManager
	Plans    PlanViewer
	Settings SettingsEditor
	Trigger  service.DayTrigger
	// StaticDir is served under /static when set.
	StaticDir string
	Now       func() time.Time
}

// Server is the planner's JSON API.
type Server struct {
	deps   Deps
	router *gin.Engine
}

// NewServer registers every route. Configuration edits, health checks and static
// files bypass the allocation trigger.
func NewServer(deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())

	s := &Server{
		deps:   deps,
		router: router,
	}

	router.GET("/healthz", s.handleHealth)
	if deps.StaticDir != "" {
		router.Static("/static", deps.StaticDir)
	}

	router.GET("/api/settings", s.handleGetSettings)
	router.PUT("/api/settings", s.handleSaveSettings)

	api := router.Group("/api")
	api.Use(allocationTrigger(deps.Trigger, deps.Now))
	{
		api.GET("/today", s.handleToday)
		api.GET("/backlog", s.handleBacklog)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/:id", s.handleGetTask)
		api.POST("/tasks/:id/start", s.handleStartTask)
		api.POST("/tasks/:id/finish", s.handleFinishTask)
		api.POST("/tasks/:id/partial", s.handlePartialFinish)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
	}

	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		config.Logger.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
