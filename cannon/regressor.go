package cannon

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

// PixelSolution is the weighted least-squares solution for one pixel.
type PixelSolution struct {
	Theta []float64
	// Inverse is (DᵀWD)⁻¹, nil when Singular.
	Inverse *mat.Dense
	IvarEff []float64
	// Singular marks the bias-only fallback [1, 0, ..., 0].
	Singular bool
}

// EffectiveIvar writes ivar/(1+ivar·scatter²) into dst and returns it.
// Masked stars (ivar == 0) and an infinite scatter give 0.
// dst is allocated when nil.
func EffectiveIvar(ivar []float64, scatter float64, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(ivar))
	}
	s2 := scatter * scatter
	for i, v := range ivar {
		switch {
		case v == 0, math.IsInf(s2, 1):
			dst[i] = 0
		default:
			dst[i] = v / (1 + v*s2)
		}
	}
	return dst
}

// FitTheta solves DᵀWD θ = DᵀWf for one pixel with W = diag(ivar_eff).
// An exactly singular system, or one whose solution is not finite, yields the
// fallback solution; it is never reported as an error. A large but finite
// condition number is accepted.
func FitTheta(flux, ivar []float64, scatter float64, design *mat.Dense) PixelSolution {
	n, k := design.Dims()
	ivarEff := EffectiveIvar(ivar, scatter, nil)

	// rows of D scaled by sqrt(w) so that A = DwᵀDw
	dw := mat.NewDense(n, k, nil)
	wf := make([]float64, n)
	for i := 0; i < n; i++ {
		w := ivarEff[i]
		wf[i] = w * flux[i]
		if w == 0 {
			continue
		}
		sw := math.Sqrt(w)
		src := design.RawRowView(i)
		dst := dw.RawRowView(i)
		for j := range src {
			dst[j] = sw * src[j]
		}
	}

	var a mat.Dense
	a.Mul(dw.T(), dw)

	var inv mat.Dense
	if err := inv.Inverse(&a); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return fallbackSolution(k, ivarEff)
		}
	}

	var atb mat.VecDense
	atb.MulVec(design.T(), mat.NewVecDense(n, wf))
	theta := make([]float64, k)
	mat.NewVecDense(k, theta).MulVec(&inv, &atb)
	for _, v := range theta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fallbackSolution(k, ivarEff)
		}
	}

	return PixelSolution{Theta: theta, Inverse: &inv, IvarEff: ivarEff}
}

func fallbackTheta(k int) []float64 {
	theta := make([]float64, k)
	theta[0] = 1
	return theta
}

func fallbackSolution(k int, ivarEff []float64) PixelSolution {
	return PixelSolution{Theta: fallbackTheta(k), IvarEff: ivarEff, Singular: true}
}
