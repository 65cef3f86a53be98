// Package render draws neurite segments into volume buffers.
//
// Each segment is rasterised as a one-cell line into an isolated cube (or
// square) around its midpoint, blurred with a Gaussian whose sigma follows
// the segment width and the buffer spacing, normalised to a peak of 1 and
// composited into one channel of the buffer by per-voxel maximum. Drawing a
// segment never darkens structure that is already present.
package render

import (
	"math"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"

	"neuritesim/internal/models"
	"neuritesim/pkg/filter"
	"neuritesim/pkg/raster"
	"neuritesim/pkg/volume"
)

// BinaryThreshold is the cutoff applied to composited values when a binary
// mask is requested. Values strictly above it become 1, all others 0.
const BinaryThreshold = 0.68

// MaxStrokeCells bounds the working buffer of a single segment. Segments
// whose length or width would need more cells are rejected.
const MaxStrokeCells = 1 << 27

// Options control how a segment is composited
type Options struct {
	// Binary thresholds the composited region at BinaryThreshold
	Binary bool

	// Channel selects the target channel; negative values count from the end
	Channel int
}

// DefaultOptions draws soft intensities into the last channel.
func DefaultOptions() Options {
	return Options{Channel: -1}
}

// Renderer draws segments into buffers. It holds no per-segment state, so a
// single Renderer may be shared between goroutines as long as their writes
// to a buffer do not overlap.
type Renderer struct {
	logger *log.Logger
}

// NewRenderer creates a renderer that logs to logger, or to the default
// logger when logger is nil.
func NewRenderer(logger *log.Logger) *Renderer {
	if logger == nil {
		logger = log.Default()
	}
	return &Renderer{logger: logger}
}

// stroke is a blurred, unnormalised segment mask waiting to be composited.
type stroke struct {
	center []float64
	radius int
	mask   *volume.Grid
}

// DrawSegment renders seg into channel opts.Channel of buf.
//
// The working buffer has radius ceil(length/2) + int(2*width) so that it
// holds both endpoints and the blur overhang. Only the part of it that lies
// inside buf is composited. A zero-length segment is drawn as a single
// blurred point with peak intensity 1.
func (r *Renderer) DrawSegment(buf *volume.Buffer, seg models.Segment, opts Options) error {
	if _, err := buf.ChannelIndex(opts.Channel); err != nil {
		return err
	}
	st, err := r.prepare(buf, seg)
	if err != nil {
		return err
	}
	return r.composite(buf, st, opts)
}

// prepare validates seg and builds its blurred mask. It only reads the
// buffer's geometry, never its values.
func (r *Renderer) prepare(buf *volume.Buffer, seg models.Segment) (*stroke, error) {
	if err := validate(buf, seg); err != nil {
		return nil, err
	}
	dims := int(buf.Dims())

	mid := seg.Midpoint()
	dir := make([]float64, dims)
	floats.SubTo(dir, seg.A, seg.B)
	length := floats.Norm(dir, 2)

	half := int(math.Ceil(length / 2))
	overhang := int(2 * seg.Width)
	radius := half + overhang
	edge := 2*radius + 1

	// The crop below is centred on the truncated midpoint; keep the
	// fractional remainder so the endpoints land where they belong.
	start := make([]int, dims)
	end := make([]int, dims)
	for axis := 0; axis < dims; axis++ {
		c := float64(radius) + (mid[axis] - math.Trunc(mid[axis]))
		start[axis] = clamp(int(math.RoundToEven(c+dir[axis]/2)), 0, edge-1)
		end[axis] = clamp(int(math.RoundToEven(c-dir[axis]/2)), 0, edge-1)
	}
	if length == 0 {
		r.logger.Debug("degenerate segment, drawing a point", "at", []float64(seg.A))
	}

	line := volume.NewCube(buf.Dims(), edge)
	for _, cell := range raster.Line(start, end) {
		line.Set(1, cell...)
	}

	sigma := buf.Spacing()
	floats.Scale(seg.Width/2, sigma)

	return &stroke{
		center: mid,
		radius: radius,
		mask:   filter.Gaussian(line, sigma),
	}, nil
}

// composite trims st to the part inside buf, normalises it and max-blends it
// into the target channel.
func (r *Renderer) composite(buf *volume.Buffer, st *stroke, opts Options) error {
	view, pad, err := buf.CropView(st.center, st.radius)
	if err != nil {
		return err
	}
	if view.Empty() {
		r.logger.Debug("segment outside buffer", "center", st.center, "radius", st.radius)
		return nil
	}

	mask, err := st.mask.Trim(pad)
	if err != nil {
		return err
	}

	peak := mask.Max()
	if peak <= 0 {
		r.logger.Debug("segment has no support inside buffer", "center", st.center)
		return nil
	}
	floats.Scale(1/peak, mask.Data)

	if err := view.MaxBlend(opts.Channel, mask); err != nil {
		return err
	}
	if opts.Binary {
		if err := view.Threshold(opts.Channel, BinaryThreshold); err != nil {
			return err
		}
	}

	r.logger.Debug("drew segment",
		"center", st.center,
		"radius", st.radius,
		"origin", view.Origin(),
		"size", view.Size(),
		"padding", []int(pad),
	)
	return nil
}

func validate(buf *volume.Buffer, seg models.Segment) error {
	dims := int(buf.Dims())
	switch {
	case seg.A.Dims() != dims || seg.B.Dims() != dims:
		return &InvalidSegmentError{Segment: seg, Reason: "endpoint dimensionality does not match buffer"}
	case !seg.A.Finite() || !seg.B.Finite():
		return &InvalidSegmentError{Segment: seg, Reason: "non-finite coordinates"}
	case math.IsNaN(seg.Width) || math.IsInf(seg.Width, 0):
		return &InvalidSegmentError{Segment: seg, Reason: "non-finite width"}
	case seg.Width <= 0:
		return &InvalidSegmentError{Segment: seg, Reason: "width must be positive"}
	}

	// Size the working buffer in float64 so huge inputs cannot overflow int.
	half := math.Ceil(floats.Distance(seg.A, seg.B, 2) / 2)
	edge := 2*(half+math.Floor(2*seg.Width)) + 1
	if cells := math.Pow(edge, float64(dims)); !(cells <= MaxStrokeCells) {
		return &InvalidSegmentError{Segment: seg, Reason: "segment too large to render"}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
