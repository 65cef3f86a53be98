package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"neuritesim/pkg/metrics"
	"neuritesim/pkg/volume"
)

type cropOpts struct {
	sceneOpts
	center []float64
	radius int
	pad    bool
	fill   float64
}

func newCropCmd() *cobra.Command {
	var opts cropOpts

	cmd := &cobra.Command{
		Use:   "crop",
		Short: "Render the scene and extract a patch around a point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if len(opts.center) != cfg.Volume.Dims {
				return fmt.Errorf("--center has %d coordinates, volume has %d axes", len(opts.center), cfg.Volume.Dims)
			}

			buf, err := renderScene(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			region, padding, err := buf.Crop(opts.center, opts.radius, opts.pad, opts.fill)
			if err != nil {
				return err
			}
			logger := loggerFromContext(cmd.Context())
			logger.Info("cropped patch", "shape", region.Shape(), "padding", []int(padding), "padded", opts.pad)

			patch, err := ownedPatch(region)
			if err != nil {
				logger.Warn("patch lies outside the volume", "center", opts.center, "radius", opts.radius)
				return nil
			}
			for c := 0; c < patch.Channels(); c++ {
				values, err := patch.Channel(c)
				if err != nil {
					return err
				}
				s := metrics.Summarize(values)
				logger.Info("patch channel", "index", c, "mean", s.Mean, "max", s.Max, "nonzero", s.NonZero)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().Float64SliceVar(&opts.center, "center", nil, "patch centre, one coordinate per axis")
	cmd.Flags().IntVar(&opts.radius, "radius", 16, "patch radius in pixels")
	cmd.Flags().BoolVar(&opts.pad, "pad", false, "pad the patch to its full size")
	cmd.Flags().Float64Var(&opts.fill, "fill", 0, "value for padded cells")
	_ = cmd.MarkFlagRequired("center")
	return cmd
}

// ownedPatch returns the values of region as a buffer, copying views.
func ownedPatch(region volume.Region) (*volume.Buffer, error) {
	switch r := region.(type) {
	case *volume.Buffer:
		return r, nil
	case *volume.View:
		return r.Copy()
	default:
		return nil, fmt.Errorf("unexpected region type %T", region)
	}
}
