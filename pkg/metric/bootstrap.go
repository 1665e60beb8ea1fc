package metric

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Measure reduces a sample to one statistic
type Measure func([]float64) float64

// Mean is the arithmetic mean of a sample
func Mean(values []float64) float64 {
	return stat.Mean(values, nil)
}

// Volatility is the sample standard deviation
func Volatility(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Interval is a bootstrap confidence interval of a measure
type Interval struct {
	Lower  float64
	Upper  float64
	Mean   float64
	StdDev float64
}

// Bootstrap estimates the confidence interval of measure over values by
// resampling them with replacement. rng makes the result reproducible; nil
// uses a fixed seed.
func Bootstrap(values []float64, measure Measure, samples int, confidence float64, rng *rand.Rand) Interval {
	if len(values) == 0 || samples <= 0 {
		return Interval{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	data := make([]float64, samples)
	resample := make([]float64, len(values))
	for i := range data {
		for j := range resample {
			resample[j] = values[rng.Intn(len(values))]
		}
		data[i] = measure(resample)
	}

	sort.Float64s(data)
	tail := 1 - confidence
	mean, stdDev := stat.MeanStdDev(data, nil)

	return Interval{
		Lower:  stat.Quantile(tail/2, stat.LinInterp, data, nil),
		Upper:  stat.Quantile(1-tail/2, stat.LinInterp, data, nil),
		Mean:   mean,
		StdDev: stdDev,
	}
}
