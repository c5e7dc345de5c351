package cannon

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/vectorizer"
)

var labelNames = []string{"TEFF", "LOGG"}

// synthetic holds a labelled set generated from a known linear model.
type synthetic struct {
	labelled LabelledSet
	flux     *mat.Dense
	ivar     *mat.Dense
	theta    *mat.Dense
	vec      *vectorizer.Polynomial
}

// newVectorizer is bias + TEFF + LOGG with labels scaled to order unity.
func newVectorizer(t testing.TB) *vectorizer.Polynomial {
	t.Helper()
	vec, err := vectorizer.NewPolynomial(labelNames, 1,
		vectorizer.WithScaling([]float64{5000, 2.5}, []float64{1000, 1}))
	require.NoError(t, err)
	return vec
}

func randomLabels(rng *rand.Rand, n int) *mat.Dense {
	labels := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		labels.Set(i, 0, 4500+1000*rng.Float64())
		labels.Set(i, 1, 1+3*rng.Float64())
	}
	return labels
}

func randomTheta(rng *rand.Rand, p int) *mat.Dense {
	theta := mat.NewDense(p, 3, nil)
	for j := 0; j < p; j++ {
		theta.Set(j, 0, 0.9+0.1*rng.Float64())
		theta.Set(j, 1, 0.2*rng.Float64()-0.1)
		theta.Set(j, 2, 0.2*rng.Float64()-0.1)
	}
	return theta
}

// makeSynthetic draws n stars and p pixels. noise is the measurement σ and
// scatter the intrinsic σ added to every pixel.
func makeSynthetic(t testing.TB, seed int64, n, p int, noise, scatter float64) synthetic {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	vec := newVectorizer(t)
	labels := randomLabels(rng, n)
	theta := randomTheta(rng, p)

	design, err := vectorizer.DesignMatrix(vec, labels)
	require.NoError(t, err)

	var flux mat.Dense
	flux.Mul(design, theta.T())
	ivar := mat.NewDense(n, p, nil)
	sigma := noise
	if sigma == 0 {
		sigma = 0.01
	}
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			flux.Set(i, j, flux.At(i, j)+noise*rng.NormFloat64()+scatter*rng.NormFloat64())
			ivar.Set(i, j, 1/(sigma*sigma))
		}
	}
	return synthetic{
		labelled: LabelledSet{Names: labelNames, Values: labels},
		flux:     &flux,
		ivar:     ivar,
		theta:    theta,
		vec:      vec,
	}
}

func (s synthetic) model(t testing.TB, opts ...Option) *Model {
	t.Helper()
	m, err := NewModel(s.labelled, s.flux, s.ivar, nil, s.vec, opts...)
	require.NoError(t, err)
	return m
}

// eventLog collects reported events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Report(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() map[EventKind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[EventKind]int{}
	for _, e := range l.events {
		out[e.Kind]++
	}
	return out
}

// countingProgress records notifications.
type countingProgress struct {
	mu         sync.Mutex
	started    int
	total      int
	increments int
	finished   int
}

func (c *countingProgress) Start(total int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
	c.total = total
}

func (c *countingProgress) Increment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.increments++
}

func (c *countingProgress) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished++
}
