package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// DayPlan is the current day's view: assigned work next to fixed lessons.
type DayPlan struct {
	Date            string
	Weekday         int
	Today           []model.Task
	Remaining       []model.Task
	Timetable       []model.TimetableEntry
	LimitMinutes    int
	AssignedMinutes float64
}

// PlanService builds read-only views over the task pool.
type PlanService struct {
	store       *repository.Store
	loc         *time.Location
	utilization int
}

func NewPlanService(store *repository.Store, loc *time.Location, utilization int) *PlanService {
	if loc == nil {
		loc = time.Local
	}
	return &PlanService{store: store, loc: loc, utilization: utilization}
}

// Today returns the plan for the calendar day of now.
func (s *PlanService) Today(ctx context.Context, now time.Time) (*DayPlan, error) {
	local := now.In(s.loc)
	plan := &DayPlan{
		Date:    model.FormatDate(model.DateOf(local)),
		Weekday: model.ISOWeekday(local),
	}

	var err error
	if plan.Today, err = s.store.Tasks.ListToday(ctx); err != nil {
		return nil, storeErr("list today", err)
	}
	if plan.Remaining, err = s.store.Tasks.ListRemaining(ctx); err != nil {
		return nil, storeErr("list remaining", err)
	}
	if plan.Timetable, err = s.store.Timetable.ListByWeekday(ctx, plan.Weekday); err != nil {
		return nil, storeErr("list timetable", err)
	}
	hours, _, err := s.store.Availability.HoursFor(ctx, plan.Weekday)
	if err != nil {
		return nil, storeErr("read availability", err)
	}
	plan.LimitMinutes = LimitMinutes(hours, s.utilization)
	for _, task := range plan.Today {
		if task.PredictedTime != nil {
			plan.AssignedMinutes += *task.PredictedTime
		}
	}
	return plan, nil
}

// Backlog returns every open task, nearest deadline first.
func (s *PlanService) Backlog(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.store.Tasks.FindTasks(ctx, repository.TaskFilter{
		Completed: boolPtr(false),
		Deleted:   boolPtr(false),
	}, "due_date ASC, id ASC")
	if err != nil {
		return nil, storeErr("list backlog", err)
	}
	return tasks, nil
}

// MaxCategoryHints bounds the category suggestions offered when creating a task.
const MaxCategoryHints = 6

// Categories returns the categories already in use, most used first.
func (s *PlanService) Categories(ctx context.Context) ([]string, error) {
	names, err := s.store.Categories.ListUsed(ctx, MaxCategoryHints)
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	return names, nil
}

var weekdayNames = [7]string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}

// WeekdayName returns the Russian name of an ISO weekday (0 = Monday).
func WeekdayName(weekday int) string {
	if weekday < 0 || weekday > 6 {
		return "?"
	}
	return weekdayNames[weekday]
}

// FormatDayPlan renders the plan as Telegram HTML.
func FormatDayPlan(plan *DayPlan, now time.Time) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>План на сегодня</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s, %s\n", plan.Date, WeekdayName(plan.Weekday)))
	builder.WriteString(fmt.Sprintf("⏱ %s из %d мин.\n\n", formatMinutes(plan.AssignedMinutes), plan.LimitMinutes))

	builder.WriteString("🏫 <b>Расписание</b>\n")
	if len(plan.Timetable) == 0 {
		builder.WriteString("— занятий нет\n")
	} else {
		for _, entry := range plan.Timetable {
			builder.WriteString(fmt.Sprintf("%d. %s\n", entry.Period, html.EscapeString(strings.TrimSpace(entry.Subject))))
		}
	}

	builder.WriteString("\n🔥 <b>Задачи на сегодня</b>\n")
	if len(plan.Today) == 0 {
		builder.WriteString("— ничего не назначено\n")
	} else {
		for _, task := range plan.Today {
			builder.WriteString(FormatTask(task, now))
		}
	}

	builder.WriteString("\n📥 <b>Остальные задачи</b>\n")
	if len(plan.Remaining) == 0 {
		builder.WriteString("— пусто\n")
	} else {
		for _, task := range plan.Remaining {
			builder.WriteString(FormatTask(task, now))
		}
	}
	return strings.TrimSpace(builder.String())
}

// FormatTask renders one task line with a deadline marker.
func FormatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	today := time.Time(model.DateOf(now))
	due := task.Due()
	icon := "🟢"
	switch {
	case due.Before(today):
		icon = "⚠️"
	case due.Sub(today) <= 48*time.Hour:
		icon = "⏳"
	}

	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Subject))))
	if category := strings.TrimSpace(task.Category); category != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(category)))
	}

	if due.Before(today) {
		sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · <b>просрочено</b>", model.FormatDate(task.DueDate)))
	} else {
		daysLeft := int(due.Sub(today).Hours() / 24)
		sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · осталось %d дн.", model.FormatDate(task.DueDate), daysLeft))
	}
	if task.PredictedTime != nil {
		sb.WriteString(fmt.Sprintf(" · ≈%s мин.", formatMinutes(*task.PredictedTime)))
	} else {
		sb.WriteString(" · оценка ещё не готова")
	}
	sb.WriteString(fmt.Sprintf(" · сложность %d", task.Difficulty))

	sb.WriteByte('\n')
	return sb.String()
}

func formatMinutes(minutes float64) string {
	if minutes == float64(int64(minutes)) {
		return fmt.Sprintf("%d", int64(minutes))
	}
	return fmt.Sprintf("%.1f", minutes)
}

func boolPtr(v bool) *bool {
	return &v
}
