package estimator

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is a hand-written estimate table.
//
//	default_minutes: 60
//	difficulty_step: 0.15
//	categories:
//	  report: 120
//	subjects:
//	  linear algebra: 1.2
//
// Base minutes come from the category (or the default), are multiplied by the
// subject factor and grow by difficulty_step for each level above 3.
type Rules struct {
	DefaultMinutes float64            `yaml:"default_minutes"`
	DifficultyStep float64            `yaml:"difficulty_step"`
	Categories     map[string]float64 `yaml:"categories"`
	Subjects       map[string]float64 `yaml:"subjects"`
}

// LoadRules reads a YAML rule table.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rule table and normalises its keys.
func ParseRules(data []byte) (*Rules, error) {
	var raw Rules
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	rules := &Rules{
		DefaultMinutes: raw.DefaultMinutes,
		DifficultyStep: raw.DifficultyStep,
		Categories:     make(map[string]float64, len(raw.Categories)),
		Subjects:       make(map[string]float64, len(raw.Subjects)),
	}
	for k, v := range raw.Categories {
		rules.Categories[normalize(k)] = v
	}
	for k, v := range raw.Subjects {
		rules.Subjects[normalize(k)] = v
	}
	return rules, nil
}

func (r *Rules) Estimate(ctx context.Context, f Features) (float64, error) {
	if r == nil {
		return 0, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	base, ok := r.Categories[normalize(f.Category)]
	if !ok {
		base = r.DefaultMinutes
	}
	if !valid(base) {
		return 0, ErrUnavailable
	}
	if factor, ok := r.Subjects[normalize(f.Subject)]; ok && valid(factor) {
		base *= factor
	}
	if f.Difficulty > 0 {
		base *= 1 + r.DifficultyStep*float64(f.Difficulty-3)
	}
	if !valid(base) {
		return 0, ErrUnavailable
	}
	return round1(base), nil
}
