package cannon

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/pkg/log"
)

func TestEvaluate(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	s, m := trainedNoiseless(t, 61, 20, WithLogger(logger))
	labels, flux, ivar := s.spectra(t, 62, 8, 0)

	// reference set columns in a different order than the vectorizer
	swapped := mat.NewDense(8, 2, nil)
	for i := 0; i < 8; i++ {
		swapped.Set(i, 0, labels.At(i, 1))
		swapped.Set(i, 1, labels.At(i, 0))
	}
	reordered := LabelledSet{Names: []string{"LOGG", "TEFF"}, Values: swapped}

	res, err := m.Evaluate(reordered, flux, ivar)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "TEFF", res[0].Label)
	assert.Equal(t, "LOGG", res[1].Label)
	for _, r := range res {
		assert.Equal(t, 8, r.N)
		assert.InDelta(t, 0, r.Bias, 1e-3)
		assert.Less(t, r.RMS, 1e-3)
	}
	assert.Equal(t, 2, logger.CountMessage("Label accuracy"))
}

func ExampleNewRegularization() {
	reg, err := NewRegularization(0, 10, 0)
	if err != nil {
		panic(err)
	}
	fmt.Println(reg.IsZero(), reg.IsScalar(), reg.Values(3))

	scalar, _ := NewRegularization(2.5)
	fmt.Println(scalar.Values(4))

	_, err = NewRegularization(-1)
	fmt.Println(err != nil)
	// Output:
	// false false [0 10 0]
	// [2.5 2.5 2.5 2.5]
	// true
}
