package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"neuritesim/pkg/config"
	"neuritesim/pkg/metrics"
	"neuritesim/pkg/render"
	"neuritesim/pkg/visualization"
	"neuritesim/pkg/volume"
)

// sceneOpts are the flags shared by every command that renders the scene.
type sceneOpts struct {
	config  string
	binary  bool
	channel int
	workers int
}

func (o *sceneOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.config, "config", "c", "neuritesim.yaml", "configuration file")
	cmd.Flags().BoolVar(&o.binary, "binary", false, "threshold each segment into a binary mask")
	cmd.Flags().IntVar(&o.channel, "channel", -1, "target channel, negative counts from the last")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "trees rendered concurrently")
}

// load reads the configuration and applies the flags the user set explicitly.
func (o *sceneOpts) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.config)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("binary") {
		cfg.Render.Binary = o.binary
	}
	if flags.Changed("channel") {
		cfg.Render.Channel = o.channel
	}
	if flags.Changed("workers") {
		cfg.Render.Workers = o.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Output.Verbose {
		loggerFromContext(cmd.Context()).SetLevel(log.DebugLevel)
	}
	return cfg, nil
}

// renderScene builds the configured buffer and draws every tree into it.
func renderScene(ctx context.Context, cfg *config.Config) (*volume.Buffer, error) {
	logger := loggerFromContext(ctx)

	buf, err := cfg.NewVolume()
	if err != nil {
		return nil, err
	}
	trees, err := cfg.Trees()
	if err != nil {
		return nil, err
	}

	segments := 0
	for _, tree := range trees {
		segments += len(tree.Segments)
	}
	logger.Debug("rendering scene", "shape", buf.Shape(), "trees", len(trees), "segments", segments, "workers", cfg.Render.Workers)

	prog := newProgress(logger)
	opts := render.Options{Binary: cfg.Render.Binary, Channel: cfg.Render.Channel}
	if err := render.NewRenderer(logger).DrawTrees(ctx, buf, trees, opts, cfg.Render.Workers); err != nil {
		return nil, fmt.Errorf("render scene: %w", err)
	}
	prog.done("rendered scene", "trees", len(trees), "segments", segments)
	return buf, nil
}

// logSummaries logs value statistics for every channel of buf.
func logSummaries(logger *log.Logger, buf *volume.Buffer) error {
	for c := 0; c < buf.Channels(); c++ {
		values, err := buf.Channel(c)
		if err != nil {
			return err
		}
		s := metrics.Summarize(values)
		logger.Info("channel", "index", c, "mean", s.Mean, "std", s.StdDev, "min", s.Min, "max", s.Max, "nonzero", s.NonZero)
	}
	return nil
}

// writePreview prints a maximum intensity projection of channel as text.
func writePreview(w io.Writer, buf *volume.Buffer, channel, axis, cols int) error {
	viewer, err := visualization.NewViewer(buf, channel)
	if err != nil {
		return err
	}
	img, err := viewer.MaxProjection(axis)
	if err != nil {
		return err
	}
	text, err := visualization.ASCII(img, cols)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

func newRenderCmd() *cobra.Command {
	var opts sceneOpts
	var preview bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the configured scene and report channel statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("preview") {
				cfg.Output.Preview = preview
			}

			buf, err := renderScene(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := logSummaries(loggerFromContext(cmd.Context()), buf); err != nil {
				return err
			}

			if cfg.Output.Preview {
				return writePreview(cmd.OutOrStdout(), buf, cfg.Render.Channel, cfg.Output.PreviewAxis, cfg.Output.PreviewColumns)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&preview, "preview", false, "print a maximum intensity projection")
	return cmd
}
