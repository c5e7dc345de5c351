package cannon

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// PixelTask is one pixel's slice of the training data. Design is shared
// read-only between tasks.
type PixelTask struct {
	Pixel  int
	Flux   []float64
	Ivar   []float64
	Design *mat.Dense
	// Scatter is σ, the seed when free and the value used when FixedScatter.
	Scatter      float64
	FixedScatter bool
	Lambda       float64
}

// PixelResult is the trained state for one pixel.
type PixelResult struct {
	Theta []float64
	// Scatter is σ; the caller stores σ². +Inf marks a degenerate pixel.
	Scatter     float64
	Singular    bool
	Stalled     bool
	Algorithm   string
	Status      optimize.Status
	Evaluations int
	Iterations  int
}

// PixelOptimizer trains a single pixel. Implementations must be safe to call
// concurrently on different tasks.
type PixelOptimizer interface {
	OptimizePixel(task PixelTask) PixelResult
}

const nelderMeadName = "NelderMead"

// singularResult is the degenerate-pixel result: bias-only theta, σ kept when
// fixed and +Inf otherwise.
func singularResult(task PixelTask, k int) PixelResult {
	scatter := math.Inf(1)
	if task.FixedScatter {
		scatter = task.Scatter
	}
	return PixelResult{Theta: fallbackTheta(k), Scatter: scatter, Singular: true}
}

// ScatterOptimizer trains unregularized pixels. With free scatter it searches
// σ by Nelder-Mead on chi² + log-det, solving θ exactly at every σ.
type ScatterOptimizer struct {
	Settings Settings
}

func (o ScatterOptimizer) OptimizePixel(task PixelTask) PixelResult {
	_, k := task.Design.Dims()
	sol := FitTheta(task.Flux, task.Ivar, task.Scatter, task.Design)
	if sol.Singular {
		return singularResult(task, k)
	}
	if task.FixedScatter {
		return PixelResult{Theta: sol.Theta, Scatter: task.Scatter}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			s := FitTheta(task.Flux, task.Ivar, x[0], task.Design)
			if s.Singular {
				return math.Inf(1)
			}
			return pixelObjective(s.Theta, task.Design, task.Flux, s.IvarEff, 0)
		},
	}
	res := PixelResult{Algorithm: nelderMeadName, Scatter: task.Scatter}
	result, err := optimize.Minimize(problem, []float64{task.Scatter}, o.Settings.optimizeSettings(), o.Settings.nelderMead())
	if result != nil {
		res.Status = result.Status
		res.Evaluations = result.FuncEvaluations
		res.Iterations = result.MajorIterations
		res.Stalled = stalled(result.Status)
		if !math.IsNaN(result.X[0]) && !math.IsInf(result.F, 1) {
			res.Scatter = math.Abs(result.X[0])
		}
	}
	if err != nil && result == nil {
		res.Status = optimize.Failure
		res.Stalled = true
	}

	final := FitTheta(task.Flux, task.Ivar, res.Scatter, task.Design)
	if final.Singular {
		// the seed was solvable, so fall back to it
		res.Scatter = task.Scatter
		final = sol
	}
	res.Theta = final.Theta
	return res
}

// RegularizedOptimizer trains pixels with an L1 penalty on θ[1:]. With fixed
// scatter it searches θ; with free scatter it searches [σ, θ...] jointly.
// Both start from the unregularized solution at the seed σ.
type RegularizedOptimizer struct {
	Settings Settings
}

func (o RegularizedOptimizer) OptimizePixel(task PixelTask) PixelResult {
	_, k := task.Design.Dims()
	sol := FitTheta(task.Flux, task.Ivar, task.Scatter, task.Design)
	if sol.Singular {
		return singularResult(task, k)
	}

	var (
		problem optimize.Problem
		x0      []float64
	)
	if task.FixedScatter {
		ivarEff := sol.IvarEff
		logDet := LogDet(ivarEff)
		problem.Func = func(theta []float64) float64 {
			return ChiSquare(theta, task.Design, task.Flux, ivarEff) + logDet + task.Lambda*L1Norm(theta[1:])
		}
		x0 = append([]float64(nil), sol.Theta...)
	} else {
		ivarEff := make([]float64, len(task.Ivar))
		problem.Func = func(x []float64) float64 {
			EffectiveIvar(task.Ivar, x[0], ivarEff)
			return pixelObjective(x[1:], task.Design, task.Flux, ivarEff, task.Lambda)
		}
		x0 = append([]float64{task.Scatter}, sol.Theta...)
	}

	res := PixelResult{
		Algorithm: nelderMeadName,
		Theta:     sol.Theta,
		Scatter:   task.Scatter,
	}
	result, err := optimize.Minimize(problem, x0, o.Settings.optimizeSettings(), o.Settings.nelderMead())
	if result == nil {
		if err != nil {
			res.Status = optimize.Failure
			res.Stalled = true
		}
		return res
	}

	res.Status = result.Status
	res.Evaluations = result.FuncEvaluations
	res.Iterations = result.MajorIterations
	res.Stalled = stalled(result.Status)
	if !finite(result.X) {
		return res
	}
	if task.FixedScatter {
		res.Theta = append([]float64(nil), result.X...)
	} else {
		res.Scatter = math.Abs(result.X[0])
		res.Theta = append([]float64(nil), result.X[1:]...)
	}
	return res
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
