package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/observability"
)

// ErrModelFailure wraps any classifier failure that is not a rejection.
var ErrModelFailure = errors.New("model failure")

// Classifier scores a single-row feature frame.
type Classifier interface {
	Predict(frame domain.Frame) (int, error)
}

// Outcome classifies how a prediction ended.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeRejected   Outcome = "rejected"
	OutcomeModelError Outcome = "model_error"
)

// Result is the answer to one prediction request. AtFault is meaningful only
// when Outcome is OutcomeSuccess; Err is set otherwise.
type Result struct {
	Outcome Outcome
	AtFault int
	Err     error
}

// Adapter calls the preloaded classifier. It never panics and never retries.
type Adapter struct {
	classifier Classifier
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewAdapter wraps a loaded classifier.
func NewAdapter(classifier Classifier, logger *slog.Logger, metrics *observability.Metrics) *Adapter {
	return &Adapter{classifier: classifier, logger: logger, metrics: metrics}
}

// Predict shapes features into a frame ordered as party_age, party_sex,
// party_race and asks the classifier for a label.
func (a *Adapter) Predict(features domain.PartyFeatures) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: OutcomeModelError, Err: fmt.Errorf("%w: classifier panic: %v", ErrModelFailure, r)}
		}
		a.metrics.Predictions.WithLabelValues(string(res.Outcome)).Inc()
		if res.Outcome == OutcomeModelError {
			a.logger.Error("prediction failed", "error", res.Err)
		}
	}()

	label, err := a.classifier.Predict(features.Frame())
	switch {
	case errors.Is(err, ErrRejected):
		return Result{Outcome: OutcomeRejected, Err: err}
	case err != nil:
		return Result{Outcome: OutcomeModelError, Err: fmt.Errorf("%w: %w", ErrModelFailure, err)}
	case label != 0 && label != 1:
		return Result{Outcome: OutcomeModelError, Err: fmt.Errorf("%w: label %d is not 0 or 1", ErrModelFailure, label)}
	}
	return Result{Outcome: OutcomeSuccess, AtFault: label}
}

// CheckReadiness reports whether a classifier is loaded.
func (a *Adapter) CheckReadiness(_ context.Context) error {
	if a.classifier == nil {
		return errors.New("model not loaded")
	}
	return nil
}
