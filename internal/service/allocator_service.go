package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// AllocationResult describes one call to the allocator.
type AllocationResult struct {
	Date         string
	Weekday      int
	LimitMinutes int
	TotalMinutes float64
	Assigned     []uint
	Cleared      int64
	// Skipped is true when the day had already been allocated and nothing changed.
	Skipped bool
}

// Allocator selects the tasks for the current day, at most once per calendar day.
type Allocator struct {
	store       *repository.Store
	loc         *time.Location
	utilization int
	mu          sync.Mutex
}

func NewAllocator(store *repository.Store, loc *time.Location, utilization int) *Allocator {
	if loc == nil {
		loc = time.Local
	}
	if utilization <= 0 || utilization > 100 {
		utilization = config.DefaultUtilization
	}
	return &Allocator{store: store, loc: loc, utilization: utilization}
}

// Location is the time zone that decides where a day starts.
func (a *Allocator) Location() *time.Location {
	return a.loc
}

// EnsureToday generates today's allocation unless it already exists.
func (a *Allocator) EnsureToday(ctx context.Context, now time.Time) (*AllocationResult, error) {
	return a.run(ctx, now, false)
}

// Reallocate drops today's allocation and generates it again, e.g. after the
// weekly availability changed.
func (a *Allocator) Reallocate(ctx context.Context, now time.Time) (*AllocationResult, error) {
	return a.run(ctx, now, true)
}

func (a *Allocator) run(ctx context.Context, now time.Time, force bool) (*AllocationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	local := now.In(a.loc)
	day := model.DateOf(local)
	result := &AllocationResult{
		Date:    model.FormatDate(day),
		Weekday: model.ISOWeekday(local),
	}

	err := a.store.Transaction(ctx, func(tx *repository.Store) error {
		if force {
			if err := tx.Allocations.DeleteByDate(ctx, result.Date); err != nil {
				return err
			}
		} else {
			done, err := allocatedOn(ctx, tx, result.Date)
			if err != nil {
				return err
			}
			if done {
				result.Skipped = true
				return nil
			}
		}

		cleared, err := tx.Tasks.BulkClearAssignment(ctx)
		if err != nil {
			return err
		}
		result.Cleared = cleared

		hours, _, err := tx.Availability.HoursFor(ctx, result.Weekday)
		if err != nil {
			return err
		}
		result.LimitMinutes = LimitMinutes(hours, a.utilization)

		candidates, err := tx.Tasks.ListCandidates(ctx)
		if err != nil {
			return err
		}
		SortCandidates(candidates)
		result.Assigned, result.TotalMinutes = SelectForBudget(candidates, result.LimitMinutes)

		if err := tx.Tasks.Assign(ctx, result.Assigned, day); err != nil {
			return err
		}
		return tx.Allocations.Create(ctx, &model.AllocationRun{
			Date:          result.Date,
			Weekday:       result.Weekday,
			LimitMinutes:  result.LimitMinutes,
			TotalMinutes:  result.TotalMinutes,
			AssignedCount: len(result.Assigned),
		})
	})
	if errors.Is(err, repository.ErrAlreadyAllocated) {
		// Another process allocated the day between our check and insert; its
		// transaction won and ours was rolled back.
		return &AllocationResult{Date: result.Date, Weekday: result.Weekday, Skipped: true}, nil
	}
	if err != nil {
		return nil, storeErr("allocate "+result.Date, err)
	}

	if !result.Skipped {
		config.Logger.WithFields(logrus.Fields{
			"date":          result.Date,
			"weekday":       result.Weekday,
			"limit_minutes": result.LimitMinutes,
			"total_minutes": result.TotalMinutes,
			"assigned":      len(result.Assigned),
			"cleared":       result.Cleared,
			"forced":        force,
		}).Info("daily allocation generated")
	}
	return result, nil
}

// allocatedOn reports whether date already has an allocation: either its marker
// row or a task assigned for that date.
func allocatedOn(ctx context.Context, tx *repository.Store, date string) (bool, error) {
	run, err := tx.Allocations.FindByDate(ctx, date)
	if err != nil {
		return false, err
	}
	if run != nil {
		return true, nil
	}
	day, err := model.ParseDate(date)
	if err != nil {
		return false, err
	}
	count, err := tx.Tasks.CountAssignedOn(ctx, day)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LimitMinutes converts a weekday budget in hours into the minutes the allocator may
// fill: floor(hours * 60 * utilization / 100).
func LimitMinutes(hours float64, utilization int) int {
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0
	}
	return int(math.Floor(hours * 60 * float64(utilization) / 100))
}

// SortCandidates orders tasks by due date, then by shorter estimate, then by id.
func SortCandidates(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.Due().Equal(b.Due()) {
			return a.Due().Before(b.Due())
		}
		pa, pb := estimateOf(a), estimateOf(b)
		if pa != pb {
			return pa < pb
		}
		return a.ID < b.ID
	})
}

func estimateOf(t model.Task) float64 {
	if t.PredictedTime == nil {
		return math.Inf(1)
	}
	return *t.PredictedTime
}

// SelectForBudget walks candidates in order and keeps each one while the running
// total stays within limit. The first candidate that does not fit ends the walk.
// Candidates with an unusable estimate are skipped without ending it.
func SelectForBudget(candidates []model.Task, limit int) ([]uint, float64) {
	selected := make([]uint, 0, len(candidates))
	var total float64
	for _, task := range candidates {
		if task.PredictedTime == nil {
			continue
		}
		minutes := *task.PredictedTime
		if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
			config.Logger.WithField("task_id", task.ID).Warn("skipping task with malformed estimate")
			continue
		}
		if total+minutes > float64(limit) {
			break
		}
		selected = append(selected, task.ID)
		total += minutes
	}
	return selected, total
}
