package volume

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Grid is a single-channel dense N-dimensional array in row-major order.
// Renderers use it as an isolated working buffer before compositing.
type Grid struct {
	shape   []int
	strides []int

	// Data holds the values in row-major order
	Data []float64
}

// NewGrid creates a zero-filled grid. A zero-length axis yields an empty grid.
func NewGrid(shape ...int) *Grid {
	for axis, s := range shape {
		if s < 0 {
			panic(fmt.Sprintf("volume: negative grid size %d on axis %d", s, axis))
		}
	}
	sh := append([]int(nil), shape...)
	return &Grid{
		shape:   sh,
		strides: stridesFor(sh),
		Data:    make([]float64, product(sh)),
	}
}

// NewCube creates a zero-filled grid with edge length n along each of dims axes.
func NewCube(dims Dims, n int) *Grid {
	shape := make([]int, dims)
	for i := range shape {
		shape[i] = n
	}
	return NewGrid(shape...)
}

// Shape returns a copy of the grid's extent.
func (g *Grid) Shape() []int { return append([]int(nil), g.shape...) }

// Dims returns the number of axes.
func (g *Grid) Dims() int { return len(g.shape) }

// Len returns the number of values.
func (g *Grid) Len() int { return len(g.Data) }

// Stride returns the distance in Data between neighbours along axis.
func (g *Grid) Stride(axis int) int { return g.strides[axis] }

// Offset returns the position of idx in Data.
func (g *Grid) Offset(idx ...int) int {
	off := 0
	for axis, i := range idx {
		off += i * g.strides[axis]
	}
	return off
}

// At returns the value at idx.
func (g *Grid) At(idx ...int) float64 { return g.Data[g.Offset(idx...)] }

// Set stores v at idx.
func (g *Grid) Set(v float64, idx ...int) { g.Data[g.Offset(idx...)] = v }

// Max returns the largest value, or 0 for an empty grid.
func (g *Grid) Max() float64 {
	if len(g.Data) == 0 {
		return 0
	}
	return floats.Max(g.Data)
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	return &Grid{
		shape:   g.Shape(),
		strides: append([]int(nil), g.strides...),
		Data:    append([]float64(nil), g.Data...),
	}
}

// Trim returns a copy of the grid with p.Low(axis) cells removed from the
// start and p.High(axis) cells removed from the end of every axis. Axes
// trimmed by more than their length become empty.
func (g *Grid) Trim(p Padding) (*Grid, error) {
	if len(p) != 2*len(g.shape) {
		return nil, fmt.Errorf("%w: padding has %d entries for %d axes", ErrInvalidShape, len(p), len(g.shape))
	}
	lo := make([]int, len(g.shape))
	shape := make([]int, len(g.shape))
	for axis, s := range g.shape {
		lo[axis] = p.Low(axis)
		shape[axis] = s - p.Low(axis) - p.High(axis)
		if shape[axis] < 0 {
			shape[axis] = 0
		}
	}
	out := NewGrid(shape...)
	src := make([]int, len(shape))
	eachIndex(shape, func(idx []int) {
		for axis := range idx {
			src[axis] = idx[axis] + lo[axis]
		}
		out.Data[out.Offset(idx...)] = g.Data[g.Offset(src...)]
	})
	return out, nil
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// eachIndex calls fn for every index of shape in row-major order. The slice
// passed to fn is reused between calls.
func eachIndex(shape []int, fn func(idx []int)) {
	for _, s := range shape {
		if s <= 0 {
			return
		}
	}
	idx := make([]int, len(shape))
	for {
		fn(idx)
		axis := len(shape) - 1
		for ; axis >= 0; axis-- {
			idx[axis]++
			if idx[axis] < shape[axis] {
				break
			}
			idx[axis] = 0
		}
		if axis < 0 {
			return
		}
	}
}
