package estimator

import (
	"context"
	"math"
	"sort"
	"strings"
)

// DefaultNeighbors is the number of samples averaged by a KNN prediction.
const DefaultNeighbors = 5

// Sample is one finished task used for training.
type Sample struct {
	Subject      string  `yaml:"subject"`
	Category     string  `yaml:"category"`
	Difficulty   int     `yaml:"difficulty"`
	DaysUntilDue int     `yaml:"days_until_due"`
	Weekday      int     `yaml:"weekday"`
	Minutes      float64 `yaml:"minutes"`
}

// SampleOf builds a training sample from features and the actual duration.
func SampleOf(f Features, minutes float64) Sample {
	return Sample{
		Subject:      normalize(f.Subject),
		Category:     normalize(f.Category),
		Difficulty:   f.Difficulty,
		DaysUntilDue: f.DaysUntilDue(),
		Weekday:      f.Weekday(),
		Minutes:      minutes,
	}
}

// KNN predicts the mean duration of the nearest finished tasks.
type KNN struct {
	Neighbors int      `yaml:"neighbors"`
	Samples   []Sample `yaml:"samples"`
}

// Fit builds a model from samples, dropping those without a usable duration.
func Fit(samples []Sample, neighbors int) *KNN {
	if neighbors <= 0 {
		neighbors = DefaultNeighbors
	}
	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !valid(s.Minutes) {
			continue
		}
		s.Subject = normalize(s.Subject)
		s.Category = normalize(s.Category)
		kept = append(kept, s)
	}
	return &KNN{Neighbors: neighbors, Samples: kept}
}

func (m *KNN) Estimate(ctx context.Context, f Features) (float64, error) {
	if m == nil || len(m.Samples) == 0 {
		return 0, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	query := SampleOf(f, 0)
	type scored struct {
		dist    float64
		minutes float64
	}
	ranked := make([]scored, 0, len(m.Samples))
	for _, s := range m.Samples {
		ranked = append(ranked, scored{dist: distance(query, s), minutes: s.Minutes})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })

	k := m.Neighbors
	if k <= 0 {
		k = DefaultNeighbors
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	var sum float64
	for _, r := range ranked[:k] {
		sum += r.minutes
	}
	mean := sum / float64(k)
	if !valid(mean) {
		return 0, ErrUnavailable
	}
	return round1(mean), nil
}

// distance weighs a subject or category mismatch above a few difficulty steps.
func distance(a, b Sample) float64 {
	var d float64
	if a.Subject != b.Subject {
		d += 3
	}
	if a.Category != b.Category {
		d += 2
	}
	d += math.Abs(float64(a.Difficulty - b.Difficulty))
	d += math.Abs(float64(a.DaysUntilDue-b.DaysUntilDue)) / 7
	if a.Weekday != b.Weekday {
		d += 0.25
	}
	return d
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
