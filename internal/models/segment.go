package models

import "math"

// Point is a position in index coordinates of a buffer, one value per
// spatial axis (slice-row-col for volumes, row-col for planes).
type Point []float64

// Dims returns the number of spatial coordinates of the point.
func (p Point) Dims() int { return len(p) }

// Finite reports whether every coordinate is a finite number.
func (p Point) Finite() bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Segment represents one straight piece of a neurite
type Segment struct {
	// A and B are the two endpoints of the segment
	A, B Point

	// Width is the neurite width, in the same units as the blur sigma
	// derived from the buffer spacing
	Width float64
}

// Midpoint returns the arithmetic mean of the two endpoints.
func (s Segment) Midpoint() Point {
	mid := make(Point, len(s.A))
	for i := range mid {
		mid[i] = (s.A[i] + s.B[i]) / 2
	}
	return mid
}

// Tree represents a single neurite tree as an ordered list of segments
type Tree struct {
	// Name identifies the tree in logs and datasets
	Name string

	// Channel optionally selects the channel the tree is drawn into.
	// Nil means the renderer's default channel.
	Channel *int

	// Segments are drawn in order
	Segments []Segment
}
