// Package visualization turns rendered buffers into in-memory images and
// terminal previews for inspecting synthetic neurites.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"golang.org/x/image/draw"

	"neuritesim/pkg/volume"
)

// Ramp maps dark to bright intensities for ASCII previews.
const Ramp = " .:-=+*#%@"

// Viewer extracts 2D images from one channel of a buffer.
type Viewer struct {
	buf     *volume.Buffer
	channel int

	// size of each spatial axis
	size []int
}

// NewViewer creates a viewer for the given channel. Negative channels count
// from the last one.
func NewViewer(buf *volume.Buffer, channel int) (*Viewer, error) {
	if buf == nil {
		return nil, fmt.Errorf("nil buffer")
	}
	c, err := buf.ChannelIndex(channel)
	if err != nil {
		return nil, err
	}
	return &Viewer{buf: buf, channel: c, size: buf.Size()}, nil
}

// Channel returns the absolute channel index being viewed.
func (v *Viewer) Channel() int { return v.channel }

// ExtractSlice extracts the plane at position along axis from a volumetric
// buffer. The remaining axes map to image rows and columns in order.
// A planar buffer has a single plane, returned for any axis at position 0.
func (v *Viewer) ExtractSlice(axis, position int) (*image.Gray16, error) {
	if err := v.checkAxis(axis); err != nil {
		return nil, err
	}
	if v.buf.Dims() == volume.Planar {
		if position != 0 {
			return nil, fmt.Errorf("planar buffer has a single plane, got position %d", position)
		}
		return v.plane(), nil
	}
	if position < 0 || position >= v.size[axis] {
		return nil, fmt.Errorf("position %d out of range [0,%d) on axis %d", position, v.size[axis], axis)
	}

	rowAxis, colAxis := otherAxes(axis)
	img := image.NewGray16(image.Rect(0, 0, v.size[colAxis], v.size[rowAxis]))
	idx := make([]int, 3)
	idx[axis] = position
	for y := 0; y < v.size[rowAxis]; y++ {
		for x := 0; x < v.size[colAxis]; x++ {
			idx[rowAxis], idx[colAxis] = y, x
			img.SetGray16(x, y, gray(v.buf.At(v.channel, idx...)))
		}
	}
	return img, nil
}

// MaxProjection returns the maximum intensity projection along axis. For a
// planar buffer it returns the plane itself.
func (v *Viewer) MaxProjection(axis int) (*image.Gray16, error) {
	if err := v.checkAxis(axis); err != nil {
		return nil, err
	}
	if v.buf.Dims() == volume.Planar {
		return v.plane(), nil
	}

	rowAxis, colAxis := otherAxes(axis)
	img := image.NewGray16(image.Rect(0, 0, v.size[colAxis], v.size[rowAxis]))
	idx := make([]int, 3)
	for y := 0; y < v.size[rowAxis]; y++ {
		for x := 0; x < v.size[colAxis]; x++ {
			idx[rowAxis], idx[colAxis] = y, x
			peak := math.Inf(-1)
			for p := 0; p < v.size[axis]; p++ {
				idx[axis] = p
				peak = math.Max(peak, v.buf.At(v.channel, idx...))
			}
			img.SetGray16(x, y, gray(peak))
		}
	}
	return img, nil
}

func (v *Viewer) plane() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, v.size[1], v.size[0]))
	for y := 0; y < v.size[0]; y++ {
		for x := 0; x < v.size[1]; x++ {
			img.SetGray16(x, y, gray(v.buf.At(v.channel, y, x)))
		}
	}
	return img
}

func (v *Viewer) checkAxis(axis int) error {
	if axis < 0 || axis >= len(v.size) {
		return fmt.Errorf("invalid axis %d for %d spatial axes", axis, len(v.size))
	}
	return nil
}

// otherAxes returns the two axes of a volume that remain after removing axis.
func otherAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

// gray maps an intensity in [0,1] to a 16-bit grey level, clamping outside
// values.
func gray(value float64) color.Gray16 {
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, value*65535)))}
}

// ASCII renders img as text, cols characters wide. Rows are halved to make
// up for terminal cells being about twice as tall as they are wide.
func ASCII(img image.Image, cols int) (string, error) {
	if cols < 1 {
		return "", fmt.Errorf("cols must be positive, got %d", cols)
	}
	b := img.Bounds()
	if b.Empty() {
		return "", nil
	}
	rows := int(math.Round(float64(cols) * float64(b.Dy()) / float64(b.Dx()) / 2))
	if rows < 1 {
		rows = 1
	}

	small := image.NewGray(image.Rect(0, 0, cols, rows))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, b, draw.Src, nil)

	levels := len(Ramp) - 1
	var sb strings.Builder
	sb.Grow(rows * (cols + 1))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			l := int(small.GrayAt(x, y).Y) * levels / 255
			sb.WriteByte(Ramp[l])
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
