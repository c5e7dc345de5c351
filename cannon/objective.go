package cannon

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ChiSquare returns Σ ivar_eff·(flux − D·θ)².
func ChiSquare(theta []float64, design mat.Matrix, flux, ivarEff []float64) float64 {
	n, _ := design.Dims()
	var model mat.VecDense
	model.MulVec(design, mat.NewVecDense(len(theta), theta))
	chi := 0.0
	for i := 0; i < n; i++ {
		if ivarEff[i] == 0 {
			continue
		}
		r := flux[i] - model.AtVec(i)
		chi += ivarEff[i] * r * r
	}
	return chi
}

// LogDet returns −Σ log(ivar_eff) over stars with ivar_eff > 0.
func LogDet(ivarEff []float64) float64 {
	s := 0.0
	for _, w := range ivarEff {
		if w > 0 {
			s -= math.Log(w)
		}
	}
	return s
}

// L1Norm returns Σ|x|.
func L1Norm(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, 1)
}

// pixelObjective is chi² + log-det, plus Λ·L1(θ[1:]) when lambda > 0.
func pixelObjective(theta []float64, design mat.Matrix, flux, ivarEff []float64, lambda float64) float64 {
	q := ChiSquare(theta, design, flux, ivarEff) + LogDet(ivarEff)
	if lambda > 0 {
		q += lambda * L1Norm(theta[1:])
	}
	return q
}
