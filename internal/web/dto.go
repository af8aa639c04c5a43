package web

import (
	"time"

	"study-planner/internal/model"
	"study-planner/internal/service"
)

type createTaskRequest struct {
	Subject    string `json:"subject"`
	Category   string `json:"category"`
	Difficulty *int   `json:"difficulty"`
	DueDate    string `json:"due_date"`
}

type finishRequest struct {
	TimeSpent *float64 `json:"time_spent"`
}

type partialRequest struct {
	Progress  *int     `json:"progress"`
	TimeSpent *float64 `json:"time_spent"`
}

type timetableEntryDTO struct {
	Weekday int    `json:"weekday"`
	Period  int    `json:"period"`
	Subject string `json:"subject"`
}

type settingsDTO struct {
	// Hours lists the budget for Monday through Sunday.
	Hours     []float64           `json:"hours"`
	Timetable []timetableEntryDTO `json:"timetable"`
}

type taskDTO struct {
	ID               uint      `json:"id"`
	Subject          string    `json:"subject"`
	Category         string    `json:"category"`
	Difficulty       int       `json:"difficulty"`
	DueDate          string    `json:"due_date"`
	PredictedTime    *float64  `json:"predicted_time"`
	TimeSpent        *float64  `json:"time_spent"`
	Status           string    `json:"status"`
	AssignedForToday bool      `json:"assigned_for_today"`
	AssignedDate     *string   `json:"assigned_date"`
	CreatedAt        time.Time `json:"created_at"`
}

type dayPlanDTO struct {
	Date            string              `json:"date"`
	Weekday         int                 `json:"weekday"`
	LimitMinutes    int                 `json:"limit_minutes"`
	AssignedMinutes float64             `json:"assigned_minutes"`
	Today           []taskDTO           `json:"today"`
	Remaining       []taskDTO           `json:"remaining"`
	Timetable       []timetableEntryDTO `json:"timetable"`
}

type allocationDTO struct {
	Date         string  `json:"date"`
	LimitMinutes int     `json:"limit_minutes"`
	TotalMinutes float64 `json:"total_minutes"`
	Assigned     []uint  `json:"assigned"`
}

func toTaskDTO(task model.Task) taskDTO {
	dto := taskDTO{
		ID:               task.ID,
		Subject:          task.Subject,
		Category:         task.Category,
		Difficulty:       task.Difficulty,
		DueDate:          model.FormatDate(task.DueDate),
		PredictedTime:    task.PredictedTime,
		TimeSpent:        task.TimeSpent,
		Status:           string(task.Status()),
		AssignedForToday: task.AssignedForToday,
		CreatedAt:        task.CreatedAt,
	}
	if task.AssignedDate != nil {
		date := model.FormatDate(*task.AssignedDate)
		dto.AssignedDate = &date
	}
	return dto
}

func toTaskDTOs(tasks []model.Task) []taskDTO {
	out := make([]taskDTO, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toTaskDTO(task))
	}
	return out
}

func toTimetableDTOs(entries []model.TimetableEntry) []timetableEntryDTO {
	out := make([]timetableEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, timetableEntryDTO{Weekday: e.Weekday, Period: e.Period, Subject: e.Subject})
	}
	return out
}

func toDayPlanDTO(plan *service.DayPlan) dayPlanDTO {
	return dayPlanDTO{
		Date:            plan.Date,
		Weekday:         plan.Weekday,
		LimitMinutes:    plan.LimitMinutes,
		AssignedMinutes: plan.AssignedMinutes,
		Today:           toTaskDTOs(plan.Today),
		Remaining:       toTaskDTOs(plan.Remaining),
		Timetable:       toTimetableDTOs(plan.Timetable),
	}
}

func toSettingsDTO(settings *service.Settings) settingsDTO {
	return settingsDTO{
		Hours:     settings.Hours[:],
		Timetable: toTimetableDTOs(settings.Timetable),
	}
}

func toAllocationDTO(result *service.AllocationResult) *allocationDTO {
	if result == nil {
		return nil
	}
	assigned := result.Assigned
	if assigned == nil {
		assigned = []uint{}
	}
	return &allocationDTO{
		Date:         result.Date,
		LimitMinutes: result.LimitMinutes,
		TotalMinutes: result.TotalMinutes,
		Assigned:     assigned,
	}
}
