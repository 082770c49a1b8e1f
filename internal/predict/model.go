// Package predict loads the at-fault classifier and turns its answers into
// explicit prediction results.
package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/collision-data-api/internal/domain"
)

// ErrRejected marks input the model cannot score.
var ErrRejected = errors.New("input rejected by model")

// NumericTerm is a standardized numeric feature: coef * (x - mean) / scale.
type NumericTerm struct {
	Coef  float64 `json:"coef"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// Model is a logistic-regression classifier exported as JSON. Numeric
// features are standardized, categorical features are one-hot encoded with
// one coefficient per known category.
type Model struct {
	Version     string                        `json:"version"`
	Features    []string                      `json:"features"`
	Intercept   float64                       `json:"intercept"`
	Numeric     map[string]NumericTerm        `json:"numeric"`
	Categorical map[string]map[string]float64 `json:"categorical"`
	Threshold   float64                       `json:"threshold"`
}

// LoadModel reads and validates the model file at path.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var m Model
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.normalize(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &m, nil
}

func (m *Model) normalize() error {
	if !slices.Equal(m.Features, domain.FeatureColumns) {
		return fmt.Errorf("features %v do not match %v", m.Features, domain.FeatureColumns)
	}
	if !(m.Threshold > 0 && m.Threshold < 1) {
		return fmt.Errorf("threshold %v must be in (0, 1)", m.Threshold)
	}

	for _, f := range m.Features {
		term, numeric := m.Numeric[f]
		cats, categorical := m.Categorical[f]
		switch {
		case numeric && categorical:
			return fmt.Errorf("feature %s is both numeric and categorical", f)
		case numeric:
			if term.Scale == 0 || math.IsNaN(term.Scale) || math.IsInf(term.Scale, 0) {
				return fmt.Errorf("feature %s has invalid scale %v", f, term.Scale)
			}
		case categorical:
			if len(cats) == 0 {
				return fmt.Errorf("feature %s has no categories", f)
			}
			folded := make(map[string]float64, len(cats))
			for k, v := range cats {
				key := foldCategory(k)
				if _, dup := folded[key]; dup {
					return fmt.Errorf("feature %s repeats category %q", f, key)
				}
				folded[key] = v
			}
			m.Categorical[f] = folded
		default:
			return fmt.Errorf("feature %s has no coefficients", f)
		}
	}
	return nil
}

// Predict scores a one-row frame and returns the label 0 or 1.
func (m *Model) Predict(frame domain.Frame) (int, error) {
	z := m.Intercept
	for _, f := range m.Features {
		v := frame.Value(f)
		if v == nil {
			return 0, fmt.Errorf("%w: missing %s", ErrRejected, f)
		}

		if term, ok := m.Numeric[f]; ok {
			x, ok := v.(float64)
			if !ok {
				return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrRejected, f, v)
			}
			if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
				return 0, fmt.Errorf("%w: %s out of range: %v", ErrRejected, f, x)
			}
			z += term.Coef * (x - term.Mean) / term.Scale
			continue
		}

		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("%w: %s must be a string, got %T", ErrRejected, f, v)
		}
		key := foldCategory(s)
		if key == "" {
			return 0, fmt.Errorf("%w: %s is empty", ErrRejected, f)
		}
		coef, ok := m.Categorical[f][key]
		if !ok {
			return 0, fmt.Errorf("%w: unknown %s %q", ErrRejected, f, s)
		}
		z += coef
	}

	if 1/(1+math.Exp(-z)) >= m.Threshold {
		return 1, nil
	}
	return 0, nil
}

func foldCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
