// Package filter implements the smoothing filters used to give rendered
// neurites their width profile.
package filter

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"neuritesim/pkg/volume"
)

// Truncate is the number of standard deviations at which Gaussian kernels are
// cut off.
const Truncate = 4.0

// Kernel returns the normalised 1D Gaussian kernel for sigma. The kernel has
// 2*radius+1 taps with radius = int(Truncate*sigma + 0.5). A non-positive
// sigma yields the identity kernel.
func Kernel(sigma float64) []float64 {
	if !(sigma > 0) {
		return []float64{1}
	}
	radius := int(Truncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	s2 := sigma * sigma
	for i := range k {
		x := float64(i - radius)
		k[i] = math.Exp(-0.5 * x * x / s2)
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// Gaussian returns a copy of g blurred with a separable Gaussian whose
// standard deviation along each axis is given by sigma. Samples beyond the
// edge take the value of the nearest edge cell. Axes with sigma <= 0 are left
// unfiltered.
func Gaussian(g *volume.Grid, sigma []float64) *volume.Grid {
	if len(sigma) != g.Dims() {
		panic("filter: sigma length does not match grid dimensions")
	}
	out := g.Clone()
	shape := g.Shape()
	for axis, s := range sigma {
		if !(s > 0) || shape[axis] == 0 {
			continue
		}
		convolveAxis(out, shape[axis], out.Stride(axis), Kernel(s))
	}
	return out
}

// convolveAxis filters every line of length n and step stride in place.
func convolveAxis(g *volume.Grid, n, stride int, kernel []float64) {
	radius := len(kernel) / 2
	line := make([]float64, n)
	res := make([]float64, n)
	for start := 0; start < len(g.Data); start++ {
		if (start/stride)%n != 0 {
			continue
		}
		for i := 0; i < n; i++ {
			line[i] = g.Data[start+i*stride]
		}
		for i := 0; i < n; i++ {
			var sum float64
			for t, w := range kernel {
				j := i + t - radius
				if j < 0 {
					j = 0
				} else if j >= n {
					j = n - 1
				}
				sum += w * line[j]
			}
			res[i] = sum
		}
		for i := 0; i < n; i++ {
			g.Data[start+i*stride] = res[i]
		}
	}
}
