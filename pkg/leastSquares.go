package vx2740

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Model evaluates a parametric curve at x.
type Model func(x float64, params []float64) float64

type LeastSquaresSettings struct {
	MaxIterations int
	// Relative reduction of the residual sum of squares below which the
	// fit is considered converged.
	FTol float64
	// Relative parameter step below which the fit is considered converged.
	XTol float64
	// Largest gradient component accepted as a stationary point.
	GTol float64
}

// Same tolerances scipy's curve_fit hands to MINPACK.
func DefaultLeastSquaresSettings() LeastSquaresSettings {
	return LeastSquaresSettings{
		MaxIterations: 1000,
		FTol:          1.49012e-08,
		XTol:          1.49012e-08,
		GTol:          0,
	}
}

const (
	initialDamping = 1e-3
	maxDamping     = 1e16
	jacobianStep   = 1.49012e-08
)

// CurveFit runs a Levenberg-Marquardt minimization of the squared residuals
// between model(xs[i], p) and ys[i], starting from p0.
func CurveFit(name string, model Model, xs, ys, p0 []float64, settings LeastSquaresSettings) ([]float64, error) {
	nPoints := len(xs)
	nParams := len(p0)
	if nPoints != len(ys) {
		return nil, &FitError{Model: name, Reason: "x and y lengths differ"}
	}
	if nPoints < nParams {
		return nil, &FitError{Model: name, Reason: "fewer points than parameters"}
	}

	params := make([]float64, nParams)
	copy(params, p0)
	residuals := make([]float64, nPoints)
	cost := computeResiduals(model, xs, ys, params, residuals)
	if !isFinite(cost) {
		return nil, &FitError{Model: name, Reason: "non-finite residuals at the initial guess"}
	}

	jac := mat.NewDense(nPoints, nParams, nil)
	jtj := mat.NewDense(nParams, nParams, nil)
	damped := mat.NewDense(nParams, nParams, nil)
	grad := mat.NewVecDense(nParams, nil)
	var step mat.VecDense

	trial := make([]float64, nParams)
	trialResiduals := make([]float64, nPoints)
	lambda := initialDamping

	for iter := 1; iter <= settings.MaxIterations; iter++ {
		if cost == 0 {
			return params, nil
		}
		computeJacobian(model, xs, params, jac)
		jtj.Mul(jac.T(), jac)
		grad.MulVec(jac.T(), mat.NewVecDense(nPoints, residuals))
		if mat.Norm(grad, math.Inf(1)) <= settings.GTol {
			return params, nil
		}

		improved := false
		for lambda <= maxDamping {
			damped.Copy(jtj)
			for j := 0; j < nParams; j++ {
				d := jtj.At(j, j)
				if d == 0 {
					d = 1
				}
				damped.Set(j, j, d*(1+lambda))
			}
			if err := step.SolveVec(damped, grad); err != nil {
				lambda *= 10
				continue
			}
			for j := range trial {
				trial[j] = params[j] + step.AtVec(j)
			}
			trialCost := computeResiduals(model, xs, ys, trial, trialResiduals)
			if isFinite(trialCost) && trialCost < cost {
				reduction := cost - trialCost
				stepNorm := floats.Norm(step.RawVector().Data, 2)
				paramNorm := floats.Norm(params, 2)

				copy(params, trial)
				copy(residuals, trialResiduals)
				cost = trialCost
				lambda = math.Max(lambda/10, 1e-12)
				improved = true

				if reduction <= settings.FTol*(cost+reduction) || stepNorm <= settings.XTol*(paramNorm+settings.XTol) {
					return params, nil
				}
				break
			}
			lambda *= 10
		}

		if !improved {
			// No damping gives a smaller cost: the current point is the minimum
			// within numerical precision.
			if allFinite(params) {
				return params, nil
			}
			return nil, &FitError{Model: name, Iterations: iter, Reason: "non-finite parameters"}
		}
	}
	return nil, &FitError{Model: name, Iterations: settings.MaxIterations, Reason: "iteration limit reached"}
}

func computeResiduals(model Model, xs, ys, params, residuals []float64) float64 {
	cost := 0.0
	for i, x := range xs {
		r := ys[i] - model(x, params)
		residuals[i] = r
		cost += r * r
	}
	return cost
}

// Forward differences, one extra model evaluation per parameter and point.
func computeJacobian(model Model, xs, params []float64, jac *mat.Dense) {
	shifted := make([]float64, len(params))
	copy(shifted, params)
	for j, p := range params {
		h := jacobianStep * math.Abs(p)
		if h == 0 {
			h = jacobianStep
		}
		shifted[j] = p + h
		for i, x := range xs {
			jac.Set(i, j, (model(x, shifted)-model(x, params))/h)
		}
		shifted[j] = p
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if !isFinite(v) {
			return false
		}
	}
	return true
}
