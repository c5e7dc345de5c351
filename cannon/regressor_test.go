package cannon

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestEffectiveIvar(t *testing.T) {
	tests := []struct {
		name    string
		ivar    []float64
		scatter float64
		want    []float64
	}{
		{"zero scatter", []float64{4, 0, 100}, 0, []float64{4, 0, 100}},
		{"inflated", []float64{4, 100}, 0.5, []float64{2, 100.0 / 26}},
		{"infinite scatter", []float64{4, 0}, math.Inf(1), []float64{0, 0}},
		{"negative sigma", []float64{4}, -0.5, []float64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, EffectiveIvar(tt.ivar, tt.scatter, nil), 1e-12)
		})
	}

	dst := make([]float64, 2)
	got := EffectiveIvar([]float64{1, 1}, 1, dst)
	assert.Equal(t, &dst[0], &got[0])
}

func TestFitThetaRecoversExactCoefficients(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n, k := 40, 4
	design := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 1; j < k; j++ {
			design.Set(i, j, rng.NormFloat64())
		}
	}
	truth := []float64{0.95, -0.03, 0.07, 0.01}
	flux := make([]float64, n)
	mat.NewVecDense(n, flux).MulVec(design, mat.NewVecDense(k, truth))
	ivar := make([]float64, n)
	for i := range ivar {
		ivar[i] = 2500
	}

	sol := FitTheta(flux, ivar, 0, design)
	require.False(t, sol.Singular)
	assert.InDeltaSlice(t, truth, sol.Theta, 1e-10)
	assert.NotNil(t, sol.Inverse)
	assert.Equal(t, ivar, sol.IvarEff)
	assert.InDelta(t, 0, ChiSquare(sol.Theta, design, flux, sol.IvarEff), 1e-12)

	// the same theta is recovered under any uniform scatter
	sol = FitTheta(flux, ivar, 0.3, design)
	assert.InDeltaSlice(t, truth, sol.Theta, 1e-10)
}

func TestFitThetaSingularDesign(t *testing.T) {
	n := 10
	design := mat.NewDense(n, 3, nil)
	flux := make([]float64, n)
	ivar := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		design.SetRow(i, []float64{1, x, x})
		flux[i] = 1 + 0.1*x
		ivar[i] = 1
	}

	sol := FitTheta(flux, ivar, 0, design)
	assert.True(t, sol.Singular)
	assert.Equal(t, []float64{1, 0, 0}, sol.Theta)
	assert.Nil(t, sol.Inverse)
}

func TestFitThetaBadlyScaledDesign(t *testing.T) {
	// an unscaled quadratic-sized term pushes the condition number past 1e16
	n := 10
	design := mat.NewDense(n, 2, nil)
	flux := make([]float64, n)
	ivar := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		design.SetRow(i, []float64{1, 1e9 * x})
		flux[i] = 1 + 0.1*x
		ivar[i] = 1
	}

	sol := FitTheta(flux, ivar, 0, design)
	require.False(t, sol.Singular)
	require.NotNil(t, sol.Inverse)
	assert.InDelta(t, 1, sol.Theta[0], 1e-6)
	assert.InDelta(t, 0.1, sol.Theta[1]*1e9, 1e-6)
}

func TestFitThetaFullyMaskedPixel(t *testing.T) {
	design := mat.NewDense(3, 2, []float64{1, 0.1, 1, 0.2, 1, 0.3})
	sol := FitTheta([]float64{1, 1, 1}, []float64{0, 0, 0}, 0.01, design)
	assert.True(t, sol.Singular)
	assert.Equal(t, []float64{1, 0}, sol.Theta)
}

func TestObjectives(t *testing.T) {
	design := mat.NewDense(3, 2, []float64{1, 0, 1, 1, 1, 2})
	flux := []float64{1, 2, 4}
	ivarEff := []float64{1, 2, 0}

	// the third star is masked, so only the first two residuals count
	assert.InDelta(t, 0, ChiSquare([]float64{1, 1}, design, flux, ivarEff), 1e-12)
	assert.InDelta(t, 8, ChiSquare([]float64{1, -1}, design, flux, ivarEff), 1e-12)

	assert.InDelta(t, -math.Log(2), LogDet(ivarEff), 1e-12)
	assert.Equal(t, 0.0, LogDet([]float64{0, 0}))

	assert.Equal(t, 3.5, L1Norm([]float64{-1, 2.5}))
	assert.Equal(t, 0.0, L1Norm(nil))

	theta := []float64{10, -1, 2}
	assert.InDelta(t, 3*0.5, pixelObjective(theta, mat.NewDense(1, 3, []float64{0, 0, 0}), []float64{0}, []float64{1}, 0.5), 1e-12)
}
