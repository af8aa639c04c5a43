package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/repository"
)

const (
	MaxDailyHours = 24
	MaxPeriod     = 10
)

// DefaultHours is the weekly budget installed by Seed, Monday first.
var DefaultHours = [7]float64{6, 8, 5, 7, 4, 3, 3}

// Settings is the editable configuration: hours per ISO weekday and the
// weekly timetable.
type Settings struct {
	Hours     [7]float64
	Timetable []model.TimetableEntry
}

// DayReallocator regenerates today's allocation from scratch.
type DayReallocator interface {
	Reallocate(ctx context.Context, now time.Time) (*AllocationResult, error)
	Location() *time.Location
}

// SettingsService reads and overwrites the weekly availability and timetable.
type SettingsService struct {
	store     *repository.Store
	allocator DayReallocator
	now       func() time.Time
}

func NewSettingsService(store *repository.Store, allocator DayReallocator) *SettingsService {
	return &SettingsService{store: store, allocator: allocator, now: time.Now}
}

// Get returns the stored settings. Weekdays without a row report zero hours.
func (s *SettingsService) Get(ctx context.Context) (*Settings, error) {
	rows, err := s.store.Availability.List(ctx)
	if err != nil {
		return nil, storeErr("list availability", err)
	}
	entries, err := s.store.Timetable.List(ctx)
	if err != nil {
		return nil, storeErr("list timetable", err)
	}
	settings := &Settings{Timetable: entries}
	for _, row := range rows {
		if row.Weekday >= 0 && row.Weekday < len(settings.Hours) {
			settings.Hours[row.Weekday] = row.AvailableHours
		}
	}
	return settings, nil
}

// Validate checks hours and timetable entries without touching the store.
func (in Settings) Validate() error {
	for weekday, hours := range in.Hours {
		if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 || hours > MaxDailyHours {
			return invalid("hours", "%s: must be within 0..%d, got %v", WeekdayName(weekday), MaxDailyHours, hours)
		}
	}
	for i, entry := range in.Timetable {
		if entry.Weekday < 0 || entry.Weekday > 6 {
			return invalid("timetable", "entry %d: weekday must be within 0..6", i+1)
		}
		if entry.Period < 1 || entry.Period > MaxPeriod {
			return invalid("timetable", "entry %d: period must be within 1..%d", i+1, MaxPeriod)
		}
		if strings.TrimSpace(entry.Subject) == "" {
			return invalid("timetable", "entry %d: subject is required", i+1)
		}
	}
	return nil
}

// Save overwrites both tables, drops today's allocation and generates it again
// against the new budget.
func (s *SettingsService) Save(ctx context.Context, in Settings) (*AllocationResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.replace(ctx, in, s.today()); err != nil {
		return nil, err
	}
	config.Logger.WithField("timetable_entries", len(in.Timetable)).Info("settings saved")

	if s.allocator == nil {
		return nil, nil
	}
	return s.allocator.Reallocate(ctx, s.now())
}

// SaveHours replaces only the weekly budget, keeping the timetable.
func (s *SettingsService) SaveHours(ctx context.Context, hours [7]float64) (*AllocationResult, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	current.Hours = hours
	return s.Save(ctx, *current)
}

// SaveTimetable replaces only the timetable, keeping the weekly budget.
func (s *SettingsService) SaveTimetable(ctx context.Context, entries []model.TimetableEntry) (*AllocationResult, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	current.Timetable = entries
	return s.Save(ctx, *current)
}

// Seed installs the default week when no availability has been configured.
// It reports whether anything was written.
func (s *SettingsService) Seed(ctx context.Context) (bool, error) {
	rows, err := s.store.Availability.List(ctx)
	if err != nil {
		return false, storeErr("list availability", err)
	}
	if len(rows) > 0 {
		return false, nil
	}
	if err := s.replace(ctx, Settings{Hours: DefaultHours, Timetable: DefaultTimetable()}, s.today()); err != nil {
		return false, err
	}
	config.Logger.Info("default settings seeded")
	return true, nil
}

// today is the allocation date key in the allocator's time zone.
func (s *SettingsService) today() string {
	now := s.now()
	if s.allocator != nil {
		now = now.In(s.allocator.Location())
	}
	return model.FormatDate(model.DateOf(now))
}

// replace writes both tables and drops today's allocation in one transaction,
// so a later trigger regenerates the day even if reallocation fails.
func (s *SettingsService) replace(ctx context.Context, in Settings, day string) error {
	rows := make([]model.Availability, 0, len(in.Hours))
	for weekday, hours := range in.Hours {
		rows = append(rows, model.Availability{Weekday: weekday, AvailableHours: hours})
	}
	entries := make([]model.TimetableEntry, 0, len(in.Timetable))
	for _, entry := range in.Timetable {
		entries = append(entries, model.TimetableEntry{
			Weekday: entry.Weekday,
			Period:  entry.Period,
			Subject: strings.TrimSpace(entry.Subject),
		})
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Availability.ReplaceAll(ctx, rows); err != nil {
			return err
		}
		if err := tx.Timetable.ReplaceAll(ctx, entries); err != nil {
			return err
		}
		cleared, err := tx.Tasks.BulkClearAssignment(ctx)
		if err != nil {
			return err
		}
		if err := tx.Allocations.DeleteByDate(ctx, day); err != nil {
			return err
		}
		config.Logger.WithFields(logrus.Fields{"cleared": cleared, "date": day}).Debug("allocation dropped by settings change")
		return nil
	})
	return storeErr("save settings", err)
}

// DefaultTimetable is a sample university week, three periods a day.
func DefaultTimetable() []model.TimetableEntry {
	subjects := [7][3]string{
		{"Линейная алгебра", "Основы физики", "Основы программирования"},
		{"Статистика", "Английский язык", "Химический практикум"},
		{"Введение в экономику", "Физкультура", "Структуры данных"},
		{"Математический анализ", "Введение в историю", "Теория информации"},
		{"Введение в философию", "Прикладное программирование", "Лидерство"},
		{"Семинар", "Самостоятельный проект", "Волонтёрство"},
		{"Книжный клуб", "Киноклуб", "Выходные занятия"},
	}
	entries := make([]model.TimetableEntry, 0, 21)
	for weekday, day := range subjects {
		for i, subject := range day {
			entries = append(entries, model.TimetableEntry{Weekday: weekday, Period: i + 1, Subject: subject})
		}
	}
	return entries
}
