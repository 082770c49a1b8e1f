package predict_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/observability"
	"github.com/couchcryptid/collision-data-api/internal/predict"
)

type stubClassifier struct {
	label int
	err   error
	panic any
	got   domain.Frame
}

func (s *stubClassifier) Predict(frame domain.Frame) (int, error) {
	s.got = frame
	if s.panic != nil {
		panic(s.panic)
	}
	return s.label, s.err
}

func newAdapter(c predict.Classifier) (*predict.Adapter, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return predict.NewAdapter(c, slog.New(slog.DiscardHandler), m), m
}

func TestAdapter_Success(t *testing.T) {
	stub := &stubClassifier{label: 1}
	a, m := newAdapter(stub)

	res := a.Predict(domain.PartyFeatures{Age: 25, Sex: "male", Race: "white"})

	assert.Equal(t, predict.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, res.AtFault)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"party_age", "party_sex", "party_race"}, stub.got.Columns)
	assert.Equal(t, []any{25.0, "male", "white"}, stub.got.Row)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Predictions.WithLabelValues("success")), 0)
}

func TestAdapter_Rejected(t *testing.T) {
	a, m := newAdapter(&stubClassifier{err: errors.Join(predict.ErrRejected, errors.New("unknown race"))})

	res := a.Predict(domain.PartyFeatures{Age: 25, Sex: "male", Race: "martian"})

	assert.Equal(t, predict.OutcomeRejected, res.Outcome)
	assert.ErrorIs(t, res.Err, predict.ErrRejected)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Predictions.WithLabelValues("rejected")), 0)
}

func TestAdapter_ModelError(t *testing.T) {
	a, _ := newAdapter(&stubClassifier{err: errors.New("corrupt coefficients")})

	res := a.Predict(domain.PartyFeatures{Age: 25, Sex: "male", Race: "white"})

	assert.Equal(t, predict.OutcomeModelError, res.Outcome)
	assert.ErrorIs(t, res.Err, predict.ErrModelFailure)
	assert.Contains(t, res.Err.Error(), "corrupt coefficients")
}

func TestAdapter_UnexpectedLabel(t *testing.T) {
	a, _ := newAdapter(&stubClassifier{label: 7})

	res := a.Predict(domain.PartyFeatures{Age: 25, Sex: "male", Race: "white"})

	assert.Equal(t, predict.OutcomeModelError, res.Outcome)
}

func TestAdapter_RecoversPanic(t *testing.T) {
	a, m := newAdapter(&stubClassifier{panic: "index out of range"})

	var res predict.Result
	require.NotPanics(t, func() {
		res = a.Predict(domain.PartyFeatures{Age: 25, Sex: "male", Race: "white"})
	})

	assert.Equal(t, predict.OutcomeModelError, res.Outcome)
	assert.ErrorIs(t, res.Err, predict.ErrModelFailure)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Predictions.WithLabelValues("model_error")), 0)
}

func TestAdapter_WithLoadedModel(t *testing.T) {
	model, err := predict.LoadModel(filepath.Join("testdata", "model.json"))
	require.NoError(t, err)
	a, _ := newAdapter(model)

	res := a.Predict(domain.PartyFeatures{Age: 25, Sex: "male", Race: "white"})
	assert.Equal(t, predict.OutcomeSuccess, res.Outcome)
	assert.Contains(t, []int{0, 1}, res.AtFault)

	res = a.Predict(domain.PartyFeatures{Age: 25, Sex: "male", Race: "martian"})
	assert.Equal(t, predict.OutcomeRejected, res.Outcome)

	require.NoError(t, a.CheckReadiness(context.Background()))
}
