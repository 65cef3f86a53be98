// Package metrics summarises rendered channels and compares renderings,
// for example a soft rendering against its binary mask or a reference.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the value distribution of one channel
type Summary struct {
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
	NonZero int
}

// Summarize computes a Summary of values. An empty slice yields a zero
// Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := Summary{
		Min: floats.Min(values),
		Max: floats.Max(values),
	}
	s.Mean, s.StdDev = stat.PopMeanStdDev(values, nil)
	for _, v := range values {
		if v != 0 {
			s.NonZero++
		}
	}
	return s
}

// Comparison holds similarity measures between two renderings
type Comparison struct {
	// RMSE is the root mean square difference
	RMSE float64

	// Correlation is the Pearson correlation, 0 when either input is constant
	Correlation float64

	// SSIM is the global structural similarity for a dynamic range of 1
	SSIM float64

	// Dice is the overlap of the two foregrounds at DiceThreshold
	Dice float64
}

// DiceThreshold separates foreground from background for the Dice score.
const DiceThreshold = 0.5

// Compare measures how similar two equally sized renderings are.
func Compare(a, b []float64) (Comparison, error) {
	if len(a) != len(b) {
		return Comparison{}, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return Comparison{}, fmt.Errorf("empty input")
	}
	return Comparison{
		RMSE:        rmse(a, b),
		Correlation: correlation(a, b),
		SSIM:        ssim(a, b),
		Dice:        dice(a, b, DiceThreshold),
	}, nil
}

func rmse(a, b []float64) float64 {
	mse := 0.0
	for i := range a {
		d := a[i] - b[i]
		mse += d * d
	}
	return math.Sqrt(mse / float64(len(a)))
}

func correlation(a, b []float64) float64 {
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return 0
	}
	return stat.Correlation(a, b, nil)
}

// ssim is the single-window structural similarity index.
func ssim(a, b []float64) float64 {
	const (
		L  = 1.0
		k1 = 0.01
		k2 = 0.03
	)
	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	muA, varA := stat.PopMeanVariance(a, nil)
	muB, varB := stat.PopMeanVariance(b, nil)
	cov := 0.0
	for i := range a {
		cov += (a[i] - muA) * (b[i] - muB)
	}
	cov /= float64(len(a))

	num := (2*muA*muB + c1) * (2*cov + c2)
	den := (muA*muA + muB*muB + c1) * (varA + varB + c2)
	return num / den
}

func dice(a, b []float64, threshold float64) float64 {
	var inter, na, nb int
	for i := range a {
		fa, fb := a[i] > threshold, b[i] > threshold
		if fa {
			na++
		}
		if fb {
			nb++
		}
		if fa && fb {
			inter++
		}
	}
	if na+nb == 0 {
		return 1
	}
	return 2 * float64(inter) / float64(na+nb)
}
