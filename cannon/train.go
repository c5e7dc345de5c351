package cannon

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
	"github.com/sdss/AnniesLasso/vectorizer"
)

// Train solves θ and s² for every pixel. With fixedScatter the scatter set by
// SetS2 (or a previous Train) is used unchanged and must be present.
//
// Pixels are independent and are scheduled through the configured Mapper.
// Per-pixel numerical problems never fail the call; they produce bias-only
// coefficients and an event.
func (m *Model) Train(fixedScatter bool) error {
	if m.flux == nil {
		return errors.WithStack(errors.ErrNoTrainingData)
	}
	if fixedScatter && m.s2 == nil {
		return errors.NewConfigurationError("fixed_scatter", "fixed-scatter training requires a prior scatter (call SetS2)", nil)
	}
	if err := m.SetRegularization(m.reg); err != nil {
		return err
	}

	start := time.Now()
	n, p := m.flux.Dims()
	design, err := vectorizer.DesignMatrix(m.vec, m.labels)
	if err != nil {
		return errors.Wrap(err, "failed to build design matrix")
	}
	_, k := design.Dims()

	seeds := make([]float64, p)
	for i := range seeds {
		if fixedScatter {
			seeds[i] = math.Sqrt(m.s2[i])
		} else {
			seeds[i] = m.cfg.settings.InitialScatter
		}
	}

	var optimizer PixelOptimizer = ScatterOptimizer{Settings: m.cfg.settings}
	strategy := "unregularized"
	if !m.reg.IsZero() {
		optimizer = RegularizedOptimizer{Settings: m.cfg.settings}
		strategy = "regularized"
	}

	logger := m.logger.With(log.OperationKey, log.OperationTrain, log.PhaseKey, log.PhaseTraining)
	logger.Info("Training started",
		log.StarsKey, n,
		log.PixelsKey, p,
		log.TermsKey, k,
		log.FixedScatterKey, fixedScatter,
		log.WorkersKey, m.cfg.mapper.Workers(),
		"strategy", strategy,
	)

	results := make([]PixelResult, p)
	var nStalled, nSingular, nPanics int64
	m.cfg.progress.Start(p, "Training")
	m.cfg.mapper.Map(p, func(i int) {
		defer m.cfg.progress.Increment()

		task := PixelTask{
			Pixel:        i,
			Flux:         mat.Col(nil, i, m.flux),
			Ivar:         mat.Col(nil, i, m.ivar),
			Design:       design,
			Scatter:      seeds[i],
			FixedScatter: fixedScatter,
			Lambda:       m.reg.At(i),
		}
		err := errors.SafeExecute(fmt.Sprintf("pixel %d", i), func() error {
			results[i] = optimizer.OptimizePixel(task)
			return nil
		})
		if err != nil {
			atomic.AddInt64(&nPanics, 1)
			results[i] = singularResult(task, k)
			m.cfg.reporter.Report(Event{Kind: EventPixelPanic, Pixel: i, Star: -1, Severity: log.LevelError, Err: err})
			return
		}

		r := results[i]
		if r.Singular {
			atomic.AddInt64(&nSingular, 1)
			m.cfg.reporter.Report(Event{Kind: EventSingularPixel, Pixel: i, Star: -1, Severity: log.LevelWarn})
		}
		if r.Stalled {
			atomic.AddInt64(&nStalled, 1)
			m.cfg.reporter.Report(stallEvent(i, -1, r.Algorithm, r.Status.String(), r.Evaluations, r.Iterations))
		}
	})
	m.cfg.progress.Finish()

	theta := mat.NewDense(p, k, nil)
	s2 := make([]float64, p)
	for i, r := range results {
		theta.SetRow(i, r.Theta)
		s2[i] = r.Scatter * r.Scatter
	}
	if fixedScatter {
		copy(s2, m.s2)
	}
	m.theta = theta
	m.s2 = s2
	m.state.SetDimensions(n, p, k)
	m.state.SetTrained()

	logger.Info("Training completed",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.StalledKey, nStalled,
		log.SingularKey, nSingular,
		"panics", nPanics,
	)
	return nil
}
