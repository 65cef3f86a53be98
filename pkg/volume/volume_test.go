package volume

import (
	"errors"
	"testing"
)

// createTestBuffer creates a buffer whose value at every cell encodes its
// channel and flat position, so copies can be checked against the source
func createTestBuffer(t *testing.T, dims Dims, channels int, size ...int) *Buffer {
	t.Helper()
	spacing := make([]float64, len(size))
	for i := range spacing {
		spacing[i] = 1
	}
	buf, err := New(dims, channels, size, spacing)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}
	for i := range buf.data {
		buf.data[i] = float64(i + 1)
	}
	return buf
}

// TestNew verifies shape validation at construction
func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		dims     Dims
		channels int
		size     []int
		spacing  []float64
		wantErr  bool
	}{
		{"volume", Volumetric, 3, []int{4, 5, 6}, []float64{1, 1, 2}, false},
		{"plane", Planar, 1, []int{4, 5}, []float64{0.5, 0.5}, false},
		{"four axes", Dims(4), 1, []int{2, 2, 2, 2}, []float64{1, 1, 1, 1}, true},
		{"no channels", Volumetric, 0, []int{2, 2, 2}, []float64{1, 1, 1}, true},
		{"size rank", Volumetric, 1, []int{2, 2}, []float64{1, 1, 1}, true},
		{"empty axis", Planar, 1, []int{0, 2}, []float64{1, 1}, true},
		{"spacing rank", Planar, 1, []int{2, 2}, []float64{1}, true},
		{"zero spacing", Planar, 1, []int{2, 2}, []float64{1, 0}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := New(tc.dims, tc.channels, tc.size, tc.spacing)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidShape) {
					t.Fatalf("Expected ErrInvalidShape, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(buf.Data()) != tc.channels*product(tc.size) {
				t.Errorf("Expected %d values, got %d", tc.channels*product(tc.size), len(buf.Data()))
			}
			if got := buf.Shape(); got[0] != tc.channels || !SameShape(got[1:], tc.size) {
				t.Errorf("Expected shape %d x %v, got %v", tc.channels, tc.size, got)
			}
		})
	}
}

// TestFromData verifies that wrapped data is used without copying
func TestFromData(t *testing.T) {
	data := make([]float64, 2*3*4)
	buf, err := FromData(Planar, 2, []int{3, 4}, []float64{1, 1}, data)
	if err != nil {
		t.Fatalf("Failed to wrap data: %v", err)
	}
	buf.Set(1, 7, 2, 3)
	if data[len(data)-1] != 7 {
		t.Errorf("Expected write to reach wrapped slice, got %v", data[len(data)-1])
	}

	if _, err := FromData(Planar, 2, []int{3, 4}, []float64{1, 1}, data[:5]); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Expected ErrInvalidShape for short data, got %v", err)
	}
}

// TestChannelIndex verifies negative channel indices count from the end
func TestChannelIndex(t *testing.T) {
	buf := createTestBuffer(t, Planar, 3, 2, 2)

	cases := map[int]int{0: 0, 2: 2, -1: 2, -3: 0}
	for in, want := range cases {
		got, err := buf.ChannelIndex(in)
		if err != nil {
			t.Errorf("ChannelIndex(%d) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ChannelIndex(%d): expected %d, got %d", in, want, got)
		}
	}

	for _, in := range []int{3, -4} {
		if _, err := buf.ChannelIndex(in); !errors.Is(err, ErrChannelRange) {
			t.Errorf("ChannelIndex(%d): expected ErrChannelRange, got %v", in, err)
		}
	}

	last, err := buf.Channel(-1)
	if err != nil {
		t.Fatalf("Channel(-1) failed: %v", err)
	}
	if len(last) != 4 || last[0] != buf.At(2, 0, 0) {
		t.Errorf("Channel(-1) does not alias the last channel")
	}
}

// TestClone verifies that a clone does not share storage
func TestClone(t *testing.T) {
	buf := createTestBuffer(t, Volumetric, 1, 2, 2, 2)
	clone := buf.Clone()
	clone.Set(0, -1, 1, 1, 1)
	if buf.At(0, 1, 1, 1) == -1 {
		t.Error("Clone shares storage with its source")
	}
}

// TestGridTrim verifies trimming by a padding vector
func TestGridTrim(t *testing.T) {
	g := NewGrid(5, 4)
	for i := range g.Data {
		g.Data[i] = float64(i)
	}

	trimmed, err := g.Trim(Padding{1, 2, 0, 1})
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if !SameShape(trimmed.Shape(), []int{2, 3}) {
		t.Fatalf("Expected shape [2 3], got %v", trimmed.Shape())
	}
	if got, want := trimmed.At(0, 0), g.At(1, 0); got != want {
		t.Errorf("Expected first value %v, got %v", want, got)
	}
	if got, want := trimmed.At(1, 2), g.At(2, 2); got != want {
		t.Errorf("Expected last value %v, got %v", want, got)
	}

	empty, err := g.Trim(Padding{4, 3, 0, 0})
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if empty.Len() != 0 || empty.Max() != 0 {
		t.Errorf("Expected empty grid, got %d values", empty.Len())
	}

	if _, err := g.Trim(Padding{1, 1}); err == nil {
		t.Error("Expected error for short padding vector")
	}
}
