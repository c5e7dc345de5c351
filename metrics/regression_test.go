package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

func TestPointMetrics(t *testing.T) {
	tests := []struct {
		name     string
		yTrue    []float64
		yPred    []float64
		wantMSE  float64
		wantMAE  float64
		wantBias float64
	}{
		{"perfect prediction", []float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5}, 0, 0, 0},
		{"symmetric errors", []float64{1, 2, 3, 4}, []float64{1.5, 2.5, 2.5, 3.5}, 0.25, 0.5, 0},
		{"larger errors", []float64{10, 20, 30}, []float64{12, 18, 33}, 17.0 / 3.0, 7.0 / 3.0, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yTrue := mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			yPred := mat.NewVecDense(len(tt.yPred), tt.yPred)

			mse, err := MSE(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantMSE, mse, 1e-10)

			rmse, err := RMSE(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, math.Sqrt(tt.wantMSE), rmse, 1e-10)

			mae, err := MAE(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantMAE, mae, 1e-10)

			bias, err := Bias(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantBias, bias, 1e-10)
		})
	}
}

func TestPointMetricsShapeErrors(t *testing.T) {
	_, err := MSE(mat.NewVecDense(3, []float64{1, 2, 3}), mat.NewVecDense(2, []float64{1, 2}))
	var shapeErr *errors.ShapeMismatchError
	assert.True(t, errors.As(err, &shapeErr))

	_, err = MAE(&mat.VecDense{}, &mat.VecDense{})
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func TestLabelResiduals(t *testing.T) {
	expected := mat.NewDense(5, 2, []float64{
		5000, 2.0,
		5100, 2.5,
		5200, 3.0,
		5300, 3.5,
		5400, 4.0,
	})
	inferred := mat.NewDense(5, 2, []float64{
		5010, 2.0,
		5110, 2.5,
		5210, math.NaN(),
		5310, 3.5,
		5410, 4.0,
	})

	res, err := LabelResiduals([]string{"TEFF", "LOGG"}, expected, inferred)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "TEFF", res[0].Label)
	assert.Equal(t, 5, res[0].N)
	assert.InDelta(t, 10, res[0].Bias, 1e-9)
	assert.InDelta(t, 10, res[0].RMS, 1e-9)
	assert.InDelta(t, 10, res[0].P50, 1e-9)

	assert.Equal(t, 4, res[1].N)
	assert.InDelta(t, 0, res[1].RMS, 1e-12)

	_, err = LabelResiduals([]string{"TEFF"}, expected, inferred)
	assert.Error(t, err)
}
