package volume

import (
	"errors"
	"fmt"
	"math"
)

// Padding counts, for each face of a crop window, how many cells fell outside
// the buffer. Entries are ordered low/high per axis:
// [low0, high0, low1, high1, ...], i.e. top/bottom, front/back, left/right
// for volumes.
type Padding []int

// Low returns the padding before index 0 on axis.
func (p Padding) Low(axis int) int { return p[2*axis] }

// High returns the padding past the last index on axis.
func (p Padding) High(axis int) int { return p[2*axis+1] }

// Zero reports whether the window was entirely inside the buffer.
func (p Padding) Zero() bool {
	for _, n := range p {
		if n != 0 {
			return false
		}
	}
	return true
}

// Region is the read-only face shared by owned patches and borrowed views.
type Region interface {
	// Shape returns the channel count followed by the spatial extent
	Shape() []int

	// Size returns the spatial extent
	Size() []int

	Channels() int
	At(c int, idx ...int) float64
}

// coordLimit bounds truncated centre coordinates so that index arithmetic
// cannot overflow.
const coordLimit = 1 << 40

// window is the in-bounds part of a crop around a centre.
type window struct {
	// lo is the first valid index per axis
	lo []int

	// extent is the number of valid cells per axis, possibly zero
	extent []int

	padding Padding
}

// window computes the valid extent and padding of the (2r+1)-wide window
// centred on the truncated center.
func (b *Buffer) window(center []float64, radius int) (window, error) {
	if len(center) != len(b.size) {
		return window{}, fmt.Errorf("%w: centre has %d coordinates, buffer has %d axes", ErrInvalidShape, len(center), len(b.size))
	}
	if radius < 0 {
		return window{}, fmt.Errorf("%w: negative radius %d", ErrInvalidShape, radius)
	}

	w := window{
		lo:      make([]int, len(b.size)),
		extent:  make([]int, len(b.size)),
		padding: make(Padding, 2*len(b.size)),
	}
	for axis, size := range b.size {
		x := center[axis]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return window{}, fmt.Errorf("%w: centre coordinate %v on axis %d", ErrInvalidShape, x, axis)
		}
		c := int(math.Trunc(math.Max(-coordLimit, math.Min(coordLimit, x))))

		var low, high int
		if c-radius < 0 {
			low = radius - c
		}
		if c+radius > size-1 {
			high = c + radius - (size - 1)
		}
		w.padding[2*axis] = low
		w.padding[2*axis+1] = high

		// The remaining radius on each side is what is left after the
		// padding is subtracted from the nominal extent.
		first := c - (radius - low)
		last := c + (radius - high)
		w.lo[axis] = first
		if last >= first {
			w.extent[axis] = last - first + 1
		} else {
			w.lo[axis] = 0
		}
	}
	return w, nil
}

// CropView returns the in-bounds part of the (2*radius+1)-wide window around
// center as a view aliasing the buffer, together with the padding that was
// clipped. The view may be smaller than 2*radius+1 along any axis and is
// empty when the window misses the buffer entirely.
func (b *Buffer) CropView(center []float64, radius int) (*View, Padding, error) {
	w, err := b.window(center, radius)
	if err != nil {
		return nil, nil, err
	}
	return &View{buf: b, origin: w.lo, size: w.extent}, w.padding, nil
}

// CropPadded returns a new buffer of edge 2*radius+1 centred on center. Cells
// outside the source buffer are set to fill.
func (b *Buffer) CropPadded(center []float64, radius int, fill float64) (*Buffer, Padding, error) {
	w, err := b.window(center, radius)
	if err != nil {
		return nil, nil, err
	}

	edge := 2*radius + 1
	size := make([]int, len(b.size))
	for i := range size {
		size[i] = edge
	}
	patch, err := New(b.dims, b.channels, size, b.spacing)
	if err != nil {
		return nil, nil, err
	}
	patch.Fill(fill)

	src := make([]int, len(size))
	dst := make([]int, len(size))
	for c := 0; c < b.channels; c++ {
		eachIndex(w.extent, func(idx []int) {
			for axis, i := range idx {
				src[axis] = w.lo[axis] + i
				dst[axis] = w.padding.Low(axis) + i
			}
			patch.data[patch.offset(c, dst)] = b.data[b.offset(c, src)]
		})
	}
	return patch, w.padding, nil
}

// Crop extracts the neighbourhood of radius cells around center. With pad set
// it returns an owned *Buffer of edge 2*radius+1 filled with fill outside the
// source; otherwise it returns a *View aliasing the source, clipped to its
// bounds.
func (b *Buffer) Crop(center []float64, radius int, pad bool, fill float64) (Region, Padding, error) {
	if pad {
		return b.CropPadded(center, radius, fill)
	}
	return b.CropView(center, radius)
}

// View is a rectangular window of a Buffer. It does not own its values:
// writes through a view change the buffer it was cropped from, so concurrent
// writers to overlapping views must be serialised by the caller.
type View struct {
	buf    *Buffer
	origin []int
	size   []int
}

// Origin returns the buffer index of the view's first cell.
func (v *View) Origin() []int { return append([]int(nil), v.origin...) }

// Size returns the spatial extent of the view.
func (v *View) Size() []int { return append([]int(nil), v.size...) }

// Shape returns the channel count followed by the spatial extent.
func (v *View) Shape() []int { return append([]int{v.buf.channels}, v.size...) }

// Channels returns the number of channels of the underlying buffer.
func (v *View) Channels() int { return v.buf.channels }

// Empty reports whether the view contains no cells.
func (v *View) Empty() bool { return product(v.size) == 0 }

// At returns the value of channel c at the view-local index idx.
func (v *View) At(c int, idx ...int) float64 {
	return v.buf.data[v.offset(c, idx)]
}

// Set stores val in channel c at the view-local index idx.
func (v *View) Set(c int, val float64, idx ...int) {
	v.buf.data[v.offset(c, idx)] = val
}

func (v *View) offset(c int, idx []int) int {
	if len(idx) != len(v.size) {
		panic(fmt.Sprintf("volume: %d indices for %d axes", len(idx), len(v.size)))
	}
	global := make([]int, len(idx))
	for axis, i := range idx {
		if i < 0 || i >= v.size[axis] {
			panic(fmt.Sprintf("volume: view index %d out of range [0,%d) on axis %d", i, v.size[axis], axis))
		}
		global[axis] = v.origin[axis] + i
	}
	return v.buf.offset(c, global)
}

// each calls fn with the buffer offset of every view cell in channel c.
func (v *View) each(c int, fn func(local []int, off int)) {
	base := c * v.buf.chanLen
	eachIndex(v.size, func(idx []int) {
		off := base
		for axis, i := range idx {
			off += (v.origin[axis] + i) * v.buf.strides[axis]
		}
		fn(idx, off)
	})
}

// MaxBlend composites mask into channel c: every cell becomes the larger of
// its current value and the mask value. The mask must have exactly the view's
// spatial shape.
func (v *View) MaxBlend(c int, mask *Grid) error {
	c, err := v.buf.ChannelIndex(c)
	if err != nil {
		return err
	}
	if !SameShape(mask.shape, v.size) {
		return &ShapeMismatchError{Want: v.Size(), Got: mask.Shape()}
	}
	data := v.buf.data
	v.each(c, func(local []int, off int) {
		if m := mask.Data[mask.Offset(local...)]; m > data[off] {
			data[off] = m
		}
	})
	return nil
}

// Threshold replaces every value of channel c inside the view with 1 when it
// is strictly greater than cutoff and with 0 otherwise.
func (v *View) Threshold(c int, cutoff float64) error {
	c, err := v.buf.ChannelIndex(c)
	if err != nil {
		return err
	}
	data := v.buf.data
	v.each(c, func(_ []int, off int) {
		if data[off] > cutoff {
			data[off] = 1
		} else {
			data[off] = 0
		}
	})
	return nil
}

// Copy returns the view's values as a new buffer.
func (v *View) Copy() (*Buffer, error) {
	if v.Empty() {
		return nil, fmt.Errorf("%w: empty view", ErrInvalidShape)
	}
	out, err := New(v.buf.dims, v.buf.channels, v.size, v.buf.spacing)
	if err != nil {
		return nil, err
	}
	for c := 0; c < v.buf.channels; c++ {
		base := c * out.chanLen
		v.each(c, func(local []int, off int) {
			dst := base
			for axis, i := range local {
				dst += i * out.strides[axis]
			}
			out.data[dst] = v.buf.data[off]
		})
	}
	return out, nil
}

// ShapeMismatchError reports a composite whose source and target disagree in
// shape.
type ShapeMismatchError struct {
	Want []int
	Got  []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: target %v, source %v", e.Want, e.Got)
}

// IsShapeMismatch reports whether err is or wraps a *ShapeMismatchError.
func IsShapeMismatch(err error) bool {
	var sm *ShapeMismatchError
	return errors.As(err, &sm)
}
