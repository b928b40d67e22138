package vx2740

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

type HistogramConfig struct {
	Min  float64
	Max  float64
	Bins int
}

func (c HistogramConfig) Validate() error {
	if c.Bins < 1 {
		return fmt.Errorf("histogram needs at least one bin, got %d", c.Bins)
	}
	if !(c.Max > c.Min) {
		return fmt.Errorf("histogram range [%g, %g] is empty", c.Min, c.Max)
	}
	return nil
}

func (c HistogramConfig) BinSize() float64 {
	return (c.Max - c.Min) / float64(c.Bins)
}

type Histogram struct {
	Edges   []float64
	Heights []float64
}

// Centers returns the midpoint of every bin.
func (h Histogram) Centers() []float64 {
	centers := make([]float64, len(h.Heights))
	for i := range centers {
		centers[i] = (h.Edges[i] + h.Edges[i+1]) / 2
	}
	return centers
}

func (h Histogram) Entries() float64 {
	return floats.Sum(h.Heights)
}

// FillHistogram counts the values inside [Min, Max]. Bins are half open
// except the last one, which also holds values equal to Max. Values outside
// the range are dropped.
func FillHistogram(values []float64, config HistogramConfig) (Histogram, error) {
	if err := config.Validate(); err != nil {
		return Histogram{}, err
	}
	hist := Histogram{
		Edges:   floats.Span(make([]float64, config.Bins+1), config.Min, config.Max),
		Heights: make([]float64, config.Bins),
	}
	binSize := config.BinSize()
	for _, v := range values {
		if !(v >= config.Min && v <= config.Max) {
			continue
		}
		bin := int((v - config.Min) / binSize)
		if bin >= config.Bins {
			bin = config.Bins - 1
		}
		// Rounding in the division can land one bin away from the edge
		if v < hist.Edges[bin] && bin > 0 {
			bin--
		} else if bin+1 < config.Bins && v >= hist.Edges[bin+1] {
			bin++
		}
		hist.Heights[bin]++
	}
	return hist, nil
}
