// Package estimator predicts how many minutes a task will take.
//
// Estimators never touch persisted state: callers pass the task attributes in and
// store the result themselves.
package estimator

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrUnavailable means no estimate could be produced for the features.
var ErrUnavailable = errors.New("estimate unavailable")

// Features are the task attributes an estimate is based on.
type Features struct {
	Subject       string
	Category      string
	Difficulty    int
	DueDate       time.Time
	ReferenceTime time.Time
}

// DaysUntilDue is the whole number of days between ReferenceTime and DueDate.
func (f Features) DaysUntilDue() int {
	return int(math.Floor(f.DueDate.Sub(f.ReferenceTime).Hours() / 24))
}

// Weekday of ReferenceTime, 0 = Monday ... 6 = Sunday.
func (f Features) Weekday() int {
	return (int(f.ReferenceTime.Weekday()) + 6) % 7
}

// Estimator returns an estimated duration in minutes or ErrUnavailable.
type Estimator interface {
	Estimate(ctx context.Context, f Features) (float64, error)
}

// Func adapts a function to Estimator.
type Func func(ctx context.Context, f Features) (float64, error)

func (fn Func) Estimate(ctx context.Context, f Features) (float64, error) {
	return fn(ctx, f)
}

// Unavailable never produces an estimate.
type Unavailable struct{}

func (Unavailable) Estimate(context.Context, Features) (float64, error) {
	return 0, ErrUnavailable
}

// Chain asks each estimator in turn and returns the first estimate.
type Chain []Estimator

func (c Chain) Estimate(ctx context.Context, f Features) (float64, error) {
	var errs []error
	for _, e := range c {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		minutes, err := e.Estimate(ctx, f)
		if err == nil {
			return minutes, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return 0, errors.Join(append([]error{ErrUnavailable}, errs...)...)
	}
	return 0, ErrUnavailable
}

// valid reports whether minutes is a usable estimate.
func valid(minutes float64) bool {
	return !math.IsNaN(minutes) && !math.IsInf(minutes, 0) && minutes > 0
}

// round1 rounds to one decimal and keeps at least one minute.
func round1(minutes float64) float64 {
	return math.Max(math.Round(minutes*10)/10, 1.0)
}
