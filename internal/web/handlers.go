package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"study-planner/internal/model"
	"study-planner/internal/service"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleToday(c *gin.Context) {
	plan, err := s.deps.Plans.Today(c.Request.Context(), s.deps.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toDayPlanDTO(plan),
	})
}

func (s *Server) handleBacklog(c *gin.Context) {
	tasks, err := s.deps.Plans.Backlog(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toTaskDTOs(tasks),
		"count":   len(tasks),
	})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	if req.Difficulty == nil {
		writeError(c, &service.ValidationError{Field: "difficulty", Reason: "is required"})
		return
	}
	input, err := service.NewTaskInput(req.Subject, req.Category, *req.Difficulty, req.DueDate)
	if err != nil {
		writeError(c, err)
		return
	}

	task, err := s.deps.Tasks.CreateTask(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    toTaskDTO(*task),
	})
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := s.deps.Tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toTaskDTO(*task),
	})
}

func (s *Server) handleStartTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := s.deps.Tasks.StartTask(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toTaskDTO(*task),
		"status":  "in_progress",
	})
}

func (s *Server) handleFinishTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req finishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	if req.TimeSpent == nil {
		writeError(c, &service.ValidationError{Field: "time_spent", Reason: "is required"})
		return
	}

	task, err := s.deps.Tasks.FinishTask(c.Request.Context(), id, *req.TimeSpent)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toTaskDTO(*task),
	})
}

func (s *Server) handlePartialFinish(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req partialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	if req.Progress == nil {
		writeError(c, &service.ValidationError{Field: "progress", Reason: "is required"})
		return
	}
	if req.TimeSpent == nil {
		writeError(c, &service.ValidationError{Field: "time_spent", Reason: "is required"})
		return
	}

	task, err := s.deps.Tasks.PartialFinish(c.Request.Context(), id, *req.Progress, *req.TimeSpent)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toTaskDTO(*task),
	})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := s.deps.Tasks.DeleteTask(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Task deleted",
	})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.deps.Settings.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toSettingsDTO(settings),
	})
}

func (s *Server) handleSaveSettings(c *gin.Context) {
	var req settingsDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	if len(req.Hours) != 7 {
		writeError(c, &service.ValidationError{Field: "hours", Reason: "must list 7 values, Monday first"})
		return
	}

	var in service.Settings
	copy(in.Hours[:], req.Hours)
	for _, e := range req.Timetable {
		in.Timetable = append(in.Timetable, model.TimetableEntry{Weekday: e.Weekday, Period: e.Period, Subject: e.Subject})
	}

	result, err := s.deps.Settings.Save(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Settings saved",
		"allocation": toAllocationDTO(result),
	})
}

func taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeBadRequest(c, "task id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

func writeBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		msg = "task not found"
	case errors.Is(err, service.ErrTaskClosed):
		status = http.StatusConflict
		msg = "task is already closed"
	case errors.Is(err, service.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		msg = "store unavailable"
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}
