package vx2740

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Below this many entries the Gaussian fit is not reported.
const MIN_EVENTS_FOR_GAUSSIAN = 10

type GaussianStatus int

// The zero value reports no fit.
const (
	GaussianInsufficient GaussianStatus = iota
	GaussianFailed
	GaussianOK
)

func (s GaussianStatus) String() string {
	switch s {
	case GaussianOK:
		return "ok"
	case GaussianInsufficient:
		return "insufficient statistics"
	case GaussianFailed:
		return "fit did not converge"
	default:
		return "unknown"
	}
}

// GaussianFit holds the parameters of amp/(sigma*sqrt(2pi)) * exp(-(x-mean)^2/(2 sigma^2)).
type GaussianFit struct {
	Amplitude float64
	Mean      float64
	Sigma     float64
}

func gaussianModel(x float64, p []float64) float64 {
	amp, mean, sigma := p[0], p[1], p[2]
	return amp * 1 / (sigma * math.Sqrt(2*math.Pi)) * math.Exp(-(x-mean)*(x-mean)/(2*sigma*sigma))
}

func (g GaussianFit) Eval(x float64) float64 {
	return gaussianModel(x, []float64{g.Amplitude, g.Mean, g.Sigma})
}

// Curve samples the Gaussian at n evenly spaced points over [from, to].
func (g GaussianFit) Curve(from, to float64, n int) (xs []float64, ys []float64) {
	if n < 2 {
		return nil, nil
	}
	xs = floats.Span(make([]float64, n), from, to)
	ys = make([]float64, n)
	for i, x := range xs {
		ys[i] = g.Eval(x)
	}
	return xs, ys
}

type AggregateStats struct {
	Config    HistogramConfig
	Histogram Histogram
	NumEvents int
	Mean      float64
	RMS       float64
	MeanError float64

	// The fields below are only meaningful when Status is GaussianOK.
	Status        GaussianStatus
	Gaussian      GaussianFit
	Centroid      float64
	Sigma         float64
	CentroidError float64
}

// Aggregate histograms the phase differences and derives the summary
// statistics. When the Gaussian fit fails the returned stats still carry the
// histogram, mean, RMS and mean error, and the error matches ErrFitDidNotConverge.
func Aggregate(results []SyncResult, config HistogramConfig) (AggregateStats, error) {
	deltas := make([]float64, len(results))
	for i, r := range results {
		deltas[i] = r.PhaseDeltaNs
	}
	hist, err := FillHistogram(deltas, config)
	if err != nil {
		return AggregateStats{}, err
	}

	stats := AggregateStats{
		Config:    config,
		Histogram: hist,
		NumEvents: int(hist.Entries()),
		Status:    GaussianInsufficient,
	}
	if stats.NumEvents == 0 {
		return stats, nil
	}

	centers := hist.Centers()
	mean, variance := stat.PopMeanVariance(centers, hist.Heights)
	stats.Mean = mean
	stats.RMS = math.Sqrt(variance)
	stats.MeanError = stats.RMS / math.Sqrt(float64(stats.NumEvents))

	if stats.NumEvents <= MIN_EVENTS_FOR_GAUSSIAN {
		return stats, nil
	}

	gauss, err := FitGaussian(hist, mean)
	if err != nil {
		stats.Status = GaussianFailed
		return stats, err
	}
	stats.Status = GaussianOK
	stats.Gaussian = gauss
	stats.Centroid = gauss.Mean
	stats.Sigma = math.Sqrt(2*math.Log(2)) * gauss.Sigma
	stats.CentroidError = gauss.Sigma / math.Sqrt(float64(stats.NumEvents))
	return stats, nil
}

// FitGaussian fits the bin heights against the bin centers, seeded with the
// tallest bin, the given mean and the spread of the bin edges.
func FitGaussian(hist Histogram, mean float64) (GaussianFit, error) {
	_, edgeVariance := stat.PopMeanVariance(hist.Edges, nil)
	seed := []float64{floats.Max(hist.Heights), mean, math.Sqrt(edgeVariance)}
	params, err := CurveFit("gaussian", gaussianModel, hist.Centers(), hist.Heights, seed, DefaultLeastSquaresSettings())
	if err != nil {
		return GaussianFit{}, err
	}
	gauss := GaussianFit{Amplitude: params[0], Mean: params[1], Sigma: params[2]}
	// The model only depends on amp/sigma and sigma^2
	if gauss.Sigma < 0 {
		gauss.Sigma = -gauss.Sigma
		gauss.Amplitude = -gauss.Amplitude
	}
	return gauss, nil
}
