package estimator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Trained serves the most recently fitted KNN model. It is safe for concurrent use.
type Trained struct {
	mu    sync.RWMutex
	model *KNN
}

func NewTrained(model *KNN) *Trained {
	return &Trained{model: model}
}

// Swap replaces the served model.
func (t *Trained) Swap(model *KNN) {
	t.mu.Lock()
	t.model = model
	t.mu.Unlock()
}

// Model returns the served model, possibly nil.
func (t *Trained) Model() *KNN {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.model
}

func (t *Trained) Estimate(ctx context.Context, f Features) (float64, error) {
	return t.Model().Estimate(ctx, f)
}

// SaveModel writes a model snapshot as YAML.
func SaveModel(path string, model *KNN) error {
	if model == nil {
		return fmt.Errorf("save model: nil model")
	}
	data, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model dir %q: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace model: %w", err)
	}
	return nil
}

// LoadModel reads a snapshot written by SaveModel.
func LoadModel(path string) (*KNN, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var model KNN
	if err := yaml.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	return Fit(model.Samples, model.Neighbors), nil
}
