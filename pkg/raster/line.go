// Package raster draws discrete primitives on integer grids.
package raster

import "math"

// Line returns the grid cells of the straight line from start to end, both
// endpoints included. Points are sampled evenly, one per unit step along the
// axis with the largest extent, and rounded half-to-even. It works for
// any number of dimensions; start and end must have the same length.
func Line(start, end []int) [][]int {
	if len(start) != len(end) {
		panic("raster: start and end have different dimensions")
	}
	steps := 0
	for i := range start {
		if d := abs(end[i] - start[i]); d > steps {
			steps = d
		}
	}

	n := steps + 1
	cells := make([][]int, n)
	for k := range cells {
		cells[k] = make([]int, len(start))
	}
	for axis := range start {
		a, b := float64(start[axis]), float64(end[axis])
		for k := range cells {
			x := a
			if steps > 0 {
				x += (b - a) * float64(k) / float64(steps)
			}
			cells[k][axis] = int(math.RoundToEven(x))
		}
	}
	return cells
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
