// Package dataset defines how paired image and label resources are turned
// into buffers and ground-truth neurite trees.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"neuritesim/internal/models"
	"neuritesim/pkg/volume"
)

// ErrNotFound is returned when a loader has no sample for an image/label pair.
var ErrNotFound = errors.New("sample not found")

// Sample is one training or test example: an image buffer and the trees that
// were drawn into it or annotated on it
type Sample struct {
	Image string
	Label string

	Volume *volume.Buffer
	Trees  []models.Tree
}

// Segments returns every segment of every tree, in tree order.
func (s *Sample) Segments() []models.Segment {
	var segs []models.Segment
	for _, tree := range s.Trees {
		segs = append(segs, tree.Segments...)
	}
	return segs
}

// Loader reads a sample given an image identifier and a label identifier.
// Implementations decide what the identifiers refer to.
type Loader interface {
	Load(ctx context.Context, image, label string) (*Sample, error)
}

type key struct{ image, label string }

// MemoryLoader serves samples registered in memory. It is safe for concurrent
// use.
type MemoryLoader struct {
	mu      sync.RWMutex
	samples map[key]*Sample
}

// NewMemoryLoader creates an empty loader.
func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{samples: make(map[key]*Sample)}
}

// Add registers a sample under its Image and Label identifiers, replacing
// any previous one.
func (l *MemoryLoader) Add(s *Sample) error {
	if s == nil {
		return errors.New("nil sample")
	}
	if s.Volume == nil {
		return fmt.Errorf("sample %q/%q has no volume", s.Image, s.Label)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples[key{s.Image, s.Label}] = s
	return nil
}

// Load implements Loader.
func (l *MemoryLoader) Load(ctx context.Context, image, label string) (*Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.samples[key{image, label}]
	if !ok {
		return nil, fmt.Errorf("%w: image %q label %q", ErrNotFound, image, label)
	}
	return s, nil
}
