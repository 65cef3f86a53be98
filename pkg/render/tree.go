package render

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"neuritesim/internal/models"
	"neuritesim/pkg/volume"
)

// DrawTree draws every segment of tree into buf in order. The tree's channel,
// when set, overrides opts.Channel. Drawing stops at the first failing
// segment; segments drawn before it stay in the buffer.
func (r *Renderer) DrawTree(ctx context.Context, buf *volume.Buffer, tree models.Tree, opts Options) error {
	if tree.Channel != nil {
		opts.Channel = *tree.Channel
	}
	for i, seg := range tree.Segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.DrawSegment(buf, seg, opts); err != nil {
			return fmt.Errorf("tree %q segment %d: %w", tree.Name, i, err)
		}
	}
	r.logger.Debug("drew tree", "name", tree.Name, "segments", len(tree.Segments))
	return nil
}

// DrawTrees draws several trees using up to workers goroutines. Masks are
// built concurrently; compositing into buf is serialised, so overlapping
// trees are safe. Without Options.Binary the result equals drawing the trees
// one after another, since max-compositing does not depend on order.
func (r *Renderer) DrawTrees(ctx context.Context, buf *volume.Buffer, trees []models.Tree, opts Options, workers int) error {
	if workers < 1 {
		workers = 1
	}

	for _, tree := range trees {
		topts := opts
		if tree.Channel != nil {
			topts.Channel = *tree.Channel
		}
		if _, err := buf.ChannelIndex(topts.Channel); err != nil {
			return fmt.Errorf("tree %q: %w", tree.Name, err)
		}
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, tree := range trees {
		tree := tree
		g.Go(func() error {
			topts := opts
			if tree.Channel != nil {
				topts.Channel = *tree.Channel
			}
			for i, seg := range tree.Segments {
				if err := ctx.Err(); err != nil {
					return err
				}
				st, err := r.prepare(buf, seg)
				if err != nil {
					return fmt.Errorf("tree %q segment %d: %w", tree.Name, i, err)
				}

				mu.Lock()
				err = r.composite(buf, st, topts)
				mu.Unlock()
				if err != nil {
					return fmt.Errorf("tree %q segment %d: %w", tree.Name, i, err)
				}
			}
			r.logger.Debug("drew tree", "name", tree.Name, "segments", len(tree.Segments))
			return nil
		})
	}
	return g.Wait()
}
