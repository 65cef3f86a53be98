// Package volume provides the multi-channel image buffer that neurites are
// rendered into, together with boundary-safe patch extraction.
//
// A Buffer stores its values channel-first in a single []float64 in row-major
// order, the same flat layout used for volumes throughout neuritesim. The
// number of spatial axes is fixed when the buffer is constructed (Planar or
// Volumetric) and every crop and composite operation works for either.
package volume

import (
	"errors"
	"fmt"
	"math"
)

// Dims is the number of spatial axes of a buffer
type Dims int

const (
	// Planar buffers have shape (C, rows, cols)
	Planar Dims = 2

	// Volumetric buffers have shape (C, slices, rows, cols)
	Volumetric Dims = 3
)

// Valid reports whether d is a supported dimensionality.
func (d Dims) Valid() bool {
	return d == Planar || d == Volumetric
}

var (
	// ErrInvalidShape is returned when a buffer is constructed with an
	// unsupported dimensionality, size, spacing or data length.
	ErrInvalidShape = errors.New("invalid buffer shape")

	// ErrChannelRange is returned when a channel index does not exist.
	ErrChannelRange = errors.New("channel out of range")
)

// Buffer is a multi-channel 2D or 3D image with physical pixel spacing.
// Its shape never changes after construction; only values are mutated.
type Buffer struct {
	dims     Dims
	channels int

	// size holds the spatial extent of each axis
	size []int

	// strides are the spatial strides within one channel
	strides []int

	// spacing is the physical size of a pixel along each axis
	spacing []float64

	// data holds channel-first values, channel c starting at c*chanLen
	data    []float64
	chanLen int
}

// New creates a zero-initialised buffer.
func New(dims Dims, channels int, size []int, spacing []float64) (*Buffer, error) {
	if err := CheckShape(dims, channels, size, spacing); err != nil {
		return nil, err
	}
	n := product(size)
	return newBuffer(dims, channels, size, spacing, make([]float64, channels*n)), nil
}

// FromData wraps existing channel-first data. The slice is used directly,
// not copied.
func FromData(dims Dims, channels int, size []int, spacing []float64, data []float64) (*Buffer, error) {
	if err := CheckShape(dims, channels, size, spacing); err != nil {
		return nil, err
	}
	if want := channels * product(size); len(data) != want {
		return nil, fmt.Errorf("%w: data has %d values, shape needs %d", ErrInvalidShape, len(data), want)
	}
	return newBuffer(dims, channels, size, spacing, data), nil
}

func newBuffer(dims Dims, channels int, size []int, spacing []float64, data []float64) *Buffer {
	sz := append([]int(nil), size...)
	return &Buffer{
		dims:     dims,
		channels: channels,
		size:     sz,
		strides:  stridesFor(sz),
		spacing:  append([]float64(nil), spacing...),
		data:     data,
		chanLen:  product(sz),
	}
}

// CheckShape reports whether New would accept the given geometry.
func CheckShape(dims Dims, channels int, size []int, spacing []float64) error {
	if !dims.Valid() {
		return fmt.Errorf("%w: %d spatial dimensions, want 2 or 3", ErrInvalidShape, dims)
	}
	if channels < 1 {
		return fmt.Errorf("%w: %d channels", ErrInvalidShape, channels)
	}
	if len(size) != int(dims) {
		return fmt.Errorf("%w: size has %d axes, want %d", ErrInvalidShape, len(size), dims)
	}
	for axis, s := range size {
		if s < 1 {
			return fmt.Errorf("%w: axis %d has size %d", ErrInvalidShape, axis, s)
		}
	}
	if len(spacing) != int(dims) {
		return fmt.Errorf("%w: spacing has %d axes, want %d", ErrInvalidShape, len(spacing), dims)
	}
	for axis, d := range spacing {
		if !(d > 0) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: axis %d has spacing %v", ErrInvalidShape, axis, d)
		}
	}
	return nil
}

// Dims returns the number of spatial axes.
func (b *Buffer) Dims() Dims { return b.dims }

// Channels returns the number of channels.
func (b *Buffer) Channels() int { return b.channels }

// Size returns a copy of the spatial extent.
func (b *Buffer) Size() []int { return append([]int(nil), b.size...) }

// Shape returns the full shape, channels first.
func (b *Buffer) Shape() []int { return append([]int{b.channels}, b.size...) }

// Spacing returns a copy of the per-axis pixel spacing.
func (b *Buffer) Spacing() []float64 { return append([]float64(nil), b.spacing...) }

// Data returns the underlying channel-first values. Writes are visible to the
// buffer.
func (b *Buffer) Data() []float64 { return b.data }

// Channel returns the values of channel c as a slice aliasing the buffer.
func (b *Buffer) Channel(c int) ([]float64, error) {
	c, err := b.ChannelIndex(c)
	if err != nil {
		return nil, err
	}
	return b.data[c*b.chanLen : (c+1)*b.chanLen], nil
}

// ChannelIndex resolves c to an absolute channel index. Negative values count
// from the last channel, so -1 is the last one.
func (b *Buffer) ChannelIndex(c int) (int, error) {
	if c < 0 {
		c += b.channels
	}
	if c < 0 || c >= b.channels {
		return 0, fmt.Errorf("%w: channel %d of %d", ErrChannelRange, c, b.channels)
	}
	return c, nil
}

// At returns the value of channel c at the spatial index idx. It panics when
// the index is out of range, like a slice access.
func (b *Buffer) At(c int, idx ...int) float64 {
	return b.data[b.offset(c, idx)]
}

// Set stores v in channel c at the spatial index idx.
func (b *Buffer) Set(c int, v float64, idx ...int) {
	b.data[b.offset(c, idx)] = v
}

// Fill sets every value of every channel to v.
func (b *Buffer) Fill(v float64) {
	for i := range b.data {
		b.data[i] = v
	}
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	return newBuffer(b.dims, b.channels, b.size, b.spacing, append([]float64(nil), b.data...))
}

func (b *Buffer) offset(c int, idx []int) int {
	if len(idx) != len(b.size) {
		panic(fmt.Sprintf("volume: %d indices for %d axes", len(idx), len(b.size)))
	}
	off := c * b.chanLen
	for axis, i := range idx {
		if i < 0 || i >= b.size[axis] {
			panic(fmt.Sprintf("volume: index %d out of range [0,%d) on axis %d", i, b.size[axis], axis))
		}
		off += i * b.strides[axis]
	}
	return off
}

func stridesFor(size []int) []int {
	strides := make([]int, len(size))
	s := 1
	for axis := len(size) - 1; axis >= 0; axis-- {
		strides[axis] = s
		s *= size[axis]
	}
	return strides
}

func product(size []int) int {
	n := 1
	for _, s := range size {
		n *= s
	}
	return n
}
