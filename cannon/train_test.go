package cannon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/core/parallel"
	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
)

func TestEndToEndNoiselessRecovery(t *testing.T) {
	s := makeSynthetic(t, 42, 50, 5, 0, 0)
	events := &eventLog{}
	m := s.model(t, WithReporter(events))

	require.NoError(t, m.SetS2(make([]float64, 5)))
	require.NoError(t, m.Train(true))
	require.True(t, m.IsTrained())

	theta := m.Theta()
	r, c := theta.Dims()
	require.Equal(t, []int{5, 3}, []int{r, c})
	for j := 0; j < 5; j++ {
		assert.InDeltaSlice(t, s.theta.RawRowView(j), theta.RawRowView(j), 1e-6, "pixel %d", j)
	}
	assert.Equal(t, make([]float64, 5), m.S2())

	// held-out star
	truth := []float64{5123, 2.71}
	row := s.vec.Vectorize(truth)
	flux := make([]float64, 5)
	mat.NewVecDense(5, flux).MulVec(s.theta, mat.NewVecDense(3, row))
	ivar := []float64{1e4, 1e4, 1e4, 1e4, 1e4}

	fit, err := m.FitSpectrum(flux, ivar)
	require.NoError(t, err)
	assert.InDelta(t, truth[0], fit.Labels[0], 1e-3)
	assert.InDelta(t, truth[1], fit.Labels[1], 1e-3)
	assert.Equal(t, 3, fit.DOF)
	assert.Zero(t, events.kinds()[EventSingularPixel])
}

func TestTrainFixedScatterRequiresPriorScatter(t *testing.T) {
	s := makeSynthetic(t, 1, 20, 3, 0.01, 0)
	progress := &countingProgress{}
	m := s.model(t, WithProgress(progress))

	err := m.Train(true)
	var cfgErr *errors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "fixed_scatter", cfgErr.Param)
	assert.Zero(t, progress.started)
	assert.False(t, m.IsTrained())
	assert.Nil(t, m.Theta())
}

func TestNegativeRegularizationRejectedBeforeTraining(t *testing.T) {
	_, err := NewRegularization(-1)
	var cfgErr *errors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))

	for _, bad := range []float64{math.NaN(), math.Inf(1)} {
		_, err := NewRegularization(0, bad)
		assert.True(t, errors.As(err, &cfgErr))
	}
}

func TestSetRegularizationShape(t *testing.T) {
	s := makeSynthetic(t, 1, 20, 4, 0.01, 0)
	m := s.model(t)

	perPixel, err := NewRegularization(0, 1, 2)
	require.NoError(t, err)
	err = m.SetRegularization(perPixel)
	var shapeErr *errors.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 4, shapeErr.Expected)

	scalar, err := NewRegularization(5)
	require.NoError(t, err)
	require.NoError(t, m.SetRegularization(scalar))
	assert.Equal(t, []float64{5, 5, 5, 5}, m.Regularization().Values(4))
}

func TestRegularizationValueObject(t *testing.T) {
	zero, err := NewRegularization()
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.True(t, zero.IsScalar())
	assert.Equal(t, 0.0, zero.At(3))

	perPixel, err := NewRegularization(0, 0, 2)
	require.NoError(t, err)
	assert.False(t, perPixel.IsZero())
	assert.False(t, perPixel.IsScalar())
	assert.Equal(t, 3, perPixel.Len())
	assert.Equal(t, 2.0, perPixel.At(2))
}

func TestNewModelValidation(t *testing.T) {
	s := makeSynthetic(t, 1, 10, 4, 0.01, 0)
	negIvar := mat.DenseCopyOf(s.ivar)
	negIvar.Set(2, 1, -1)
	nanFlux := mat.DenseCopyOf(s.flux)
	nanFlux.Set(0, 0, math.NaN())
	infIvar := mat.DenseCopyOf(s.ivar)
	infIvar.Set(3, 3, math.Inf(1))

	tests := []struct {
		name       string
		labelled   LabelledSet
		flux, ivar mat.Matrix
		dispersion []float64
		check      func(t *testing.T, err error)
	}{
		{"ivar pixels", s.labelled, s.flux, mat.NewDense(10, 3, nil), nil, isShapeMismatch},
		{"ivar stars", s.labelled, s.flux, mat.NewDense(9, 4, nil), nil, isShapeMismatch},
		{"dispersion", s.labelled, s.flux, s.ivar, []float64{1, 2, 3}, isShapeMismatch},
		{"labelled stars", LabelledSet{Names: labelNames, Values: mat.NewDense(9, 2, nil)}, s.flux, s.ivar, nil, isShapeMismatch},
		{"missing label", LabelledSet{Names: []string{"TEFF", "FE_H"}, Values: s.labelled.Values}, s.flux, s.ivar, nil, isConfiguration},
		{"negative ivar", s.labelled, s.flux, negIvar, nil, isConfiguration},
		{"nan flux", s.labelled, nanFlux, s.ivar, nil, isNumerical},
		{"infinite ivar", s.labelled, s.flux, infIvar, nil, isNumerical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.labelled, tt.flux, tt.ivar, tt.dispersion, s.vec)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	m, err := NewModel(s.labelled, s.flux, s.ivar, []float64{15000, 15001, 15002, 15003}, s.vec)
	require.NoError(t, err)
	assert.Equal(t, []float64{15000, 15001, 15002, 15003}, m.Dispersion())
	assert.NotEmpty(t, m.ID())
}

func isShapeMismatch(t *testing.T, err error) {
	var e *errors.ShapeMismatchError
	assert.True(t, errors.As(err, &e), "got %v", err)
}

func isConfiguration(t *testing.T, err error) {
	var e *errors.ConfigurationError
	assert.True(t, errors.As(err, &e), "got %v", err)
}

func isNumerical(t *testing.T, err error) {
	var e *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &e), "got %v", err)
}

func TestSetS2Validation(t *testing.T) {
	s := makeSynthetic(t, 1, 10, 3, 0.01, 0)
	m := s.model(t)

	assert.Error(t, m.SetS2([]float64{0, 0}))
	assert.Error(t, m.SetS2([]float64{0, -1, 0}))
	assert.Error(t, m.SetS2([]float64{0, math.NaN(), 0}))
	assert.NoError(t, m.SetS2([]float64{0, math.Inf(1), 0.01}))
}

func TestScatterRoundTrip(t *testing.T) {
	s := makeSynthetic(t, 11, 150, 4, 0.01, 0.02)
	free := s.model(t, WithWorkers(2))
	require.NoError(t, free.Train(false))
	for _, v := range free.S2() {
		assert.Greater(t, v, 0.0)
	}

	fixed := s.model(t, WithWorkers(2))
	require.NoError(t, fixed.SetS2(free.S2()))
	require.NoError(t, fixed.Train(true))
	assert.Equal(t, free.S2(), fixed.S2())

	for j := 0; j < 4; j++ {
		assert.InDeltaSlice(t, free.Theta().RawRowView(j), fixed.Theta().RawRowView(j), 1e-8)
	}
}

func TestZeroRegularizationUsesUnregularizedPath(t *testing.T) {
	s := makeSynthetic(t, 12, 80, 3, 0.01, 0.01)

	plain := s.model(t, WithWorkers(1))
	require.NoError(t, plain.Train(false))

	zeros := s.model(t, WithWorkers(1))
	reg, err := NewRegularization(0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, zeros.SetRegularization(reg))
	require.NoError(t, zeros.Train(false))

	assert.True(t, mat.EqualApprox(plain.Theta(), zeros.Theta(), 1e-12))
	assert.InDeltaSlice(t, plain.S2(), zeros.S2(), 1e-12)
}

func TestTrainMapperIndependence(t *testing.T) {
	s := makeSynthetic(t, 13, 60, 6, 0.01, 0.01)

	seq := s.model(t, WithMapper(parallel.Sequential{}))
	require.NoError(t, seq.Train(false))

	mappers := []parallel.Mapper{parallel.Pool{MaxGoroutines: 3}, parallel.Chunked{Threshold: 2}}
	for _, mapper := range mappers {
		par := s.model(t, WithMapper(mapper))
		require.NoError(t, par.Train(false))
		assert.Equal(t, seq.Theta().RawMatrix().Data, par.Theta().RawMatrix().Data)
		assert.Equal(t, seq.S2(), par.S2())
	}
}

func TestTrainDegeneratePixel(t *testing.T) {
	s := makeSynthetic(t, 14, 30, 5, 0.01, 0)
	for i := 0; i < 30; i++ {
		s.ivar.Set(i, 1, 0)
	}
	events := &eventLog{}
	progress := &countingProgress{}
	m := s.model(t, WithReporter(events), WithProgress(progress))

	require.NoError(t, m.Train(false))
	assert.Equal(t, []float64{1, 0, 0}, m.Theta().RawRowView(1))
	assert.True(t, math.IsInf(m.S2()[1], 1))
	assert.False(t, math.IsInf(m.S2()[0], 1))
	assert.Equal(t, 1, events.kinds()[EventSingularPixel])

	assert.Equal(t, 1, progress.started)
	assert.Equal(t, 5, progress.total)
	assert.Equal(t, 5, progress.increments)
	assert.Equal(t, 1, progress.finished)

	// a degenerate pixel carries no weight during inference
	fit, err := m.FitSpectrum(mat.Row(nil, 0, s.flux), mat.Row(nil, 0, s.ivar))
	require.NoError(t, err)
	assert.Equal(t, 2, fit.DOF)
}

func TestRegularizedTraining(t *testing.T) {
	s := makeSynthetic(t, 15, 60, 3, 0.01, 0)
	m := s.model(t)
	reg, err := NewRegularization(0, 1e6, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetRegularization(reg))
	require.NoError(t, m.SetS2(make([]float64, 3)))
	require.NoError(t, m.Train(true))

	theta := m.Theta()
	assert.Less(t, L1Norm(theta.RawRowView(1)[1:]), 1e-3)

	// Λ = 0 pixels still reach the weighted least-squares solution
	task := pixelTask(t, s, 0)
	wls := FitTheta(task.Flux, task.Ivar, 0, task.Design)
	assert.InDeltaSlice(t, wls.Theta, theta.RawRowView(0), 1e-5)
}

func TestTrainLogsSummary(t *testing.T) {
	s := makeSynthetic(t, 16, 20, 2, 0.01, 0)
	logger, _ := log.NewTestLogger(log.LevelInfo)
	m := s.model(t, WithLogger(logger))
	require.NoError(t, m.Train(false))

	assert.True(t, logger.ContainsMessage("Training started"))
	assert.True(t, logger.ContainsMessage("Training completed"))
	assert.True(t, logger.ContainsField(log.EstimatorIDKey, m.ID()))
	assert.True(t, logger.ContainsField(log.PixelsKey, 2.0))
}

func TestPredict(t *testing.T) {
	s := makeSynthetic(t, 17, 30, 4, 0, 0)
	m := s.model(t)

	_, err := m.Predict(s.labelled.Values)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	require.NoError(t, m.SetS2(make([]float64, 4)))
	require.NoError(t, m.Train(true))
	pred, err := m.Predict(s.labelled.Values)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(s.flux, pred, 1e-9))
}
