package render

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"

	"neuritesim/internal/models"
	"neuritesim/pkg/volume"
)

// newTestRenderer returns a renderer whose logs are discarded
func newTestRenderer() *Renderer {
	return NewRenderer(log.New(io.Discard))
}

// createTestVolume creates a zero-filled cube with unit spacing
func createTestVolume(t *testing.T, channels, size int) *volume.Buffer {
	t.Helper()
	buf, err := volume.New(volume.Volumetric, channels, []int{size, size, size}, []float64{1, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return buf
}

func segment(a, b models.Point, width float64) models.Segment {
	return models.Segment{A: a, B: b, Width: width}
}

// TestDrawSegmentLine renders a line along the last axis of a 3x21^3 volume
func TestDrawSegmentLine(t *testing.T) {
	buf := createTestVolume(t, 3, 21)
	r := newTestRenderer()

	seg := segment(models.Point{10, 10, 5}, models.Point{10, 10, 15}, 1)
	if err := r.DrawSegment(buf, seg, Options{Channel: 0}); err != nil {
		t.Fatalf("DrawSegment failed: %v", err)
	}

	if got := buf.At(0, 10, 10, 10); math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected intensity 1 at line centre, got %v", got)
	}

	lineMin := math.Inf(1)
	for k := 5; k <= 15; k++ {
		lineMin = math.Min(lineMin, buf.At(0, 10, 10, k))
	}
	if lineMin < 0.8 {
		t.Errorf("Expected bright voxels along the whole line, minimum was %v", lineMin)
	}

	offMax := 0.0
	for i := 0; i < 21; i++ {
		for j := 0; j < 21; j++ {
			for k := 0; k < 21; k++ {
				if i == 10 && j == 10 && k >= 5 && k <= 15 {
					continue
				}
				offMax = math.Max(offMax, buf.At(0, i, j, k))
			}
		}
	}
	if offMax >= lineMin {
		t.Errorf("Expected line voxels to be the maxima: off-line max %v, line min %v", offMax, lineMin)
	}

	for _, idx := range [][]int{{0, 0, 0}, {10, 10, 2}, {10, 10, 18}, {10, 3, 10}, {20, 20, 20}} {
		if got := buf.At(0, idx...); got != 0 {
			t.Errorf("Expected voxel %v far from the line to stay 0, got %v", idx, got)
		}
	}

	for c := 1; c < 3; c++ {
		ch, _ := buf.Channel(c)
		for _, v := range ch {
			if v != 0 {
				t.Fatalf("Expected channel %d untouched", c)
			}
		}
	}
}

// TestDrawSegmentIdempotent redraws a segment onto its own output
func TestDrawSegmentIdempotent(t *testing.T) {
	buf := createTestVolume(t, 1, 16)
	r := newTestRenderer()
	seg := segment(models.Point{3.2, 4, 5.5}, models.Point{11, 9.7, 8}, 1.5)

	if err := r.DrawSegment(buf, seg, DefaultOptions()); err != nil {
		t.Fatalf("DrawSegment failed: %v", err)
	}
	first := buf.Clone()
	if err := r.DrawSegment(buf, seg, DefaultOptions()); err != nil {
		t.Fatalf("DrawSegment failed: %v", err)
	}

	for i, v := range buf.Data() {
		if v != first.Data()[i] {
			t.Fatalf("Value %d changed on redraw: %v -> %v", i, first.Data()[i], v)
		}
	}
}

// TestDrawSegmentMonotonic verifies that drawing never darkens a voxel and
// that disjoint segments commute
func TestDrawSegmentMonotonic(t *testing.T) {
	r := newTestRenderer()
	segs := []models.Segment{
		segment(models.Point{4, 4, 2}, models.Point{4, 4, 10}, 1),
		segment(models.Point{20, 20, 15}, models.Point{26, 22, 25}, 1),
		segment(models.Point{5, 4, 4}, models.Point{12, 4, 4}, 2),
	}

	buf := createTestVolume(t, 1, 30)
	for _, seg := range segs {
		before := buf.Clone()
		if err := r.DrawSegment(buf, seg, DefaultOptions()); err != nil {
			t.Fatalf("DrawSegment failed: %v", err)
		}
		for i, v := range buf.Data() {
			if v < before.Data()[i] {
				t.Fatalf("Voxel %d darkened from %v to %v", i, before.Data()[i], v)
			}
		}
	}

	ab := createTestVolume(t, 1, 30)
	ba := createTestVolume(t, 1, 30)
	for _, seg := range []models.Segment{segs[0], segs[1]} {
		if err := r.DrawSegment(ab, seg, DefaultOptions()); err != nil {
			t.Fatalf("DrawSegment failed: %v", err)
		}
	}
	for _, seg := range []models.Segment{segs[1], segs[0]} {
		if err := r.DrawSegment(ba, seg, DefaultOptions()); err != nil {
			t.Fatalf("DrawSegment failed: %v", err)
		}
	}
	for i, v := range ab.Data() {
		if v != ba.Data()[i] {
			t.Fatalf("Voxel %d depends on draw order: %v vs %v", i, v, ba.Data()[i])
		}
	}
}

// TestDrawSegmentBinary verifies that binary rendering yields only 0 and 1
func TestDrawSegmentBinary(t *testing.T) {
	buf := createTestVolume(t, 2, 20)
	r := newTestRenderer()

	segs := []models.Segment{
		segment(models.Point{2, 3, 4}, models.Point{15, 12, 9}, 1),
		segment(models.Point{10, 10, 0}, models.Point{10, 10, 19}, 2),
	}
	for _, seg := range segs {
		if err := r.DrawSegment(buf, seg, Options{Binary: true, Channel: 1}); err != nil {
			t.Fatalf("DrawSegment failed: %v", err)
		}
	}

	ch, _ := buf.Channel(1)
	ones := 0
	for _, v := range ch {
		if v != 0 && v != 1 {
			t.Fatalf("Expected binary values, found %v", v)
		}
		if v == 1 {
			ones++
		}
	}
	if ones == 0 {
		t.Error("Expected some foreground voxels")
	}
	if buf.At(1, 10, 10, 10) != 1 {
		t.Error("Expected the line centre to be foreground")
	}
}

// TestDrawSegmentDegenerate verifies that a zero-length segment is drawn as a
// single blurred point of peak intensity 1
func TestDrawSegmentDegenerate(t *testing.T) {
	buf := createTestVolume(t, 1, 12)
	r := newTestRenderer()

	p := models.Point{5, 6, 7}
	if err := r.DrawSegment(buf, segment(p, p, 1), DefaultOptions()); err != nil {
		t.Fatalf("DrawSegment failed: %v", err)
	}

	if got := buf.At(0, 5, 6, 7); got != 1 {
		t.Errorf("Expected intensity 1 at the point, got %v", got)
	}
	for i, v := range buf.Data() {
		if math.IsNaN(v) {
			t.Fatalf("Voxel %d is NaN", i)
		}
		if v > 1 {
			t.Fatalf("Voxel %d exceeds 1: %v", i, v)
		}
	}
	if got := buf.At(0, 5, 6, 8); got <= 0 || got >= 1 {
		t.Errorf("Expected blurred neighbour in (0,1), got %v", got)
	}
}

// TestDrawSegmentInvalid verifies that invalid segments are rejected before
// touching the buffer
func TestDrawSegmentInvalid(t *testing.T) {
	buf := createTestVolume(t, 1, 8)
	r := newTestRenderer()

	tests := map[string]models.Segment{
		"zero width":     segment(models.Point{1, 1, 1}, models.Point{5, 5, 5}, 0),
		"negative width": segment(models.Point{1, 1, 1}, models.Point{5, 5, 5}, -2),
		"NaN width":      segment(models.Point{1, 1, 1}, models.Point{5, 5, 5}, math.NaN()),
		"infinite point": segment(models.Point{1, math.Inf(1), 1}, models.Point{5, 5, 5}, 1),
		"planar point":   segment(models.Point{1, 1}, models.Point{5, 5}, 1),
		"huge width":     segment(models.Point{1, 1, 1}, models.Point{2, 2, 2}, 1e9),
		"wrapping width": segment(models.Point{1, 1, 1}, models.Point{2, 2, 2}, 1e19),
		"huge length":    segment(models.Point{0, 0, 0}, models.Point{0, 0, 1e300}, 1),
		"oversized cube": segment(models.Point{0, 0, 0}, models.Point{0, 0, 600}, 1),
	}
	for name, seg := range tests {
		t.Run(name, func(t *testing.T) {
			err := r.DrawSegment(buf, seg, DefaultOptions())
			if !IsInvalidSegment(err) {
				t.Fatalf("Expected InvalidSegmentError, got %v", err)
			}
		})
	}

	for _, v := range buf.Data() {
		if v != 0 {
			t.Fatal("Rejected segment modified the buffer")
		}
	}

	seg := segment(models.Point{1, 1, 1}, models.Point{5, 5, 5}, 1)
	if err := r.DrawSegment(buf, seg, Options{Channel: 3}); !errors.Is(err, volume.ErrChannelRange) {
		t.Errorf("Expected ErrChannelRange, got %v", err)
	}
}

// TestDrawSegmentBoundary renders segments that cross or miss the volume
func TestDrawSegmentBoundary(t *testing.T) {
	buf := createTestVolume(t, 1, 10)
	r := newTestRenderer()

	if err := r.DrawSegment(buf, segment(models.Point{0, 0, -3}, models.Point{0, 0, 6}, 1), DefaultOptions()); err != nil {
		t.Fatalf("DrawSegment across boundary failed: %v", err)
	}
	if got := buf.At(0, 0, 0, 2); math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected intensity 1 inside the clipped line, got %v", got)
	}
	peak := 0.0
	for _, v := range buf.Data() {
		peak = math.Max(peak, v)
	}
	if math.Abs(peak-1) > 1e-9 {
		t.Errorf("Expected clipped rendering normalised to 1, got max %v", peak)
	}

	before := buf.Clone()
	if err := r.DrawSegment(buf, segment(models.Point{40, 40, 40}, models.Point{45, 41, 40}, 1), DefaultOptions()); err != nil {
		t.Fatalf("DrawSegment outside volume failed: %v", err)
	}
	for i, v := range buf.Data() {
		if v != before.Data()[i] {
			t.Fatal("Segment outside the volume changed it")
		}
	}
}

// TestDrawSegmentPlanar renders into a 2D buffer
func TestDrawSegmentPlanar(t *testing.T) {
	buf, err := volume.New(volume.Planar, 1, []int{20, 30}, []float64{1, 1})
	if err != nil {
		t.Fatalf("Failed to create plane: %v", err)
	}
	r := newTestRenderer()

	if err := r.DrawSegment(buf, segment(models.Point{4, 4}, models.Point{14, 24}, 1), DefaultOptions()); err != nil {
		t.Fatalf("DrawSegment failed: %v", err)
	}
	if got := buf.At(0, 4, 4); got < 0.5 {
		t.Errorf("Expected bright start point, got %v", got)
	}
	if got := buf.At(0, 9, 14); got < 0.8 {
		t.Errorf("Expected bright midpoint, got %v", got)
	}
	if got := buf.At(0, 19, 0); got != 0 {
		t.Errorf("Expected dark corner, got %v", got)
	}
}

// TestDrawSegmentSpacing verifies that blur follows the pixel spacing
func TestDrawSegmentSpacing(t *testing.T) {
	buf, err := volume.New(volume.Volumetric, 1, []int{21, 21, 21}, []float64{2, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	r := newTestRenderer()

	if err := r.DrawSegment(buf, segment(models.Point{10, 10, 5}, models.Point{10, 10, 15}, 1), DefaultOptions()); err != nil {
		t.Fatalf("DrawSegment failed: %v", err)
	}
	wide, narrow := buf.At(0, 11, 10, 10), buf.At(0, 10, 11, 10)
	if wide <= narrow {
		t.Errorf("Expected more spread along the coarser axis: %v <= %v", wide, narrow)
	}
}
