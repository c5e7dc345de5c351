package cannon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

func TestDefaultLambdas(t *testing.T) {
	lambdas := DefaultLambdas()
	require.Len(t, lambdas, 102)
	assert.Equal(t, 0.0, lambdas[0])
	assert.Equal(t, 1.0, lambdas[1])
	assert.InDelta(t, 10, lambdas[11], 1e-9)
	assert.InDelta(t, 1e10, lambdas[101], 1)
	for i := 1; i < len(lambdas); i++ {
		assert.Greater(t, lambdas[i], lambdas[i-1])
	}
}

func subsetsOf(n, mod int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i % mod
	}
	return out
}

func TestValidateRegularization(t *testing.T) {
	s := makeSynthetic(t, 31, 80, 3, 0.01, 0)
	progress := &countingProgress{}
	m := s.model(t, WithProgress(progress))
	require.NoError(t, m.SetS2(make([]float64, 3)))

	lambdas := []float64{0, 10, 1e8}
	res, err := m.ValidateRegularization(lambdas, subsetsOf(80, 4), 4, true)
	require.NoError(t, err)
	assert.Equal(t, lambdas, res.Lambdas)

	r, c := res.ChiSquare.Dims()
	assert.Equal(t, []int{3, 3}, []int{r, c})
	for j := 0; j < 3; j++ {
		// a crushing penalty flattens the model and the held-out fit degrades
		assert.Greater(t, res.ChiSquare.At(2, j), res.ChiSquare.At(0, j))
		// with a fixed scatter the log-det term does not depend on Λ
		assert.Equal(t, res.LogDet.At(0, j), res.LogDet.At(2, j))
	}
	for _, best := range res.Optimal() {
		assert.NotEqual(t, 1e8, best)
	}

	// sub-models neither touch the parent model nor its progress
	assert.False(t, m.IsTrained())
	assert.Equal(t, make([]float64, 3), m.S2())
	assert.Zero(t, progress.started)
}

func TestValidateRegularizationDegeneratePixel(t *testing.T) {
	s := makeSynthetic(t, 32, 40, 3, 0.01, 0)
	for i := 0; i < 40; i++ {
		s.ivar.Set(i, 2, 0)
	}
	m := s.model(t, WithReporter(&eventLog{}))

	res, err := m.ValidateRegularization([]float64{0, 1}, subsetsOf(40, 2), 2, false)
	require.NoError(t, err)
	assert.True(t, math.IsInf(res.ChiSquare.At(0, 2), 1))
	assert.True(t, math.IsInf(res.ChiSquare.At(1, 2), 1))
	assert.Equal(t, 0.0, res.Optimal()[2])
	assert.False(t, math.IsInf(res.ChiSquare.At(0, 0), 1))
}

func TestValidationOptimalPrefersSmallerLambdaOnTies(t *testing.T) {
	res := &ValidationResult{
		Lambdas:   []float64{0, 1, 10},
		ChiSquare: mat.NewDense(3, 2, []float64{5, 3, 4, 3, 4, 9}),
		LogDet:    mat.NewDense(3, 2, []float64{0, 0, 0, 0, 0, 0}),
	}
	assert.Equal(t, []float64{1, 0}, res.Optimal())
}

func TestValidateRegularizationErrors(t *testing.T) {
	s := makeSynthetic(t, 33, 20, 2, 0.01, 0)
	m := s.model(t)

	var shapeErr *errors.ShapeMismatchError
	_, err := m.ValidateRegularization([]float64{0}, subsetsOf(19, 2), 2, false)
	assert.True(t, errors.As(err, &shapeErr))

	var cfgErr *errors.ConfigurationError
	_, err = m.ValidateRegularization([]float64{0}, subsetsOf(20, 2), 1, false)
	assert.True(t, errors.As(err, &cfgErr))
	_, err = m.ValidateRegularization(nil, subsetsOf(20, 2), 2, false)
	assert.True(t, errors.As(err, &cfgErr))
	_, err = m.ValidateRegularization([]float64{0, -1}, subsetsOf(20, 2), 2, false)
	assert.True(t, errors.As(err, &cfgErr))
	_, err = m.ValidateRegularization([]float64{0}, subsetsOf(20, 2), 2, true)
	assert.True(t, errors.As(err, &cfgErr))

	var valErr *errors.ValueError
	_, err = m.ValidateRegularization([]float64{0}, make([]int, 20), 2, false)
	assert.True(t, errors.As(err, &valErr))
}
