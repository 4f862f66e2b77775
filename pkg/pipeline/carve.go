package pipeline

import (
	"context"

	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/imageio"
)

// Carve removes seams from img in place according to opts and returns them
// in removal order.
func Carve(ctx context.Context, img *seam.Image, opts Options) ([]seam.Seam, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	n, err := opts.SeamCount(img.ActiveWidth())
	if err != nil {
		return nil, err
	}
	return carveN(ctx, img, n, &opts)
}

// carveN removes exactly n seams. opts must already be validated.
func carveN(ctx context.Context, img *seam.Image, n int, opts *Options) ([]seam.Seam, error) {
	seams := make([]seam.Seam, 0, n)
	c, err := seam.NewCarver(img, seam.WithSeamFunc(func(pass int, s seam.Seam) {
		seams = append(seams, s)
		opts.Logger.Debug("removed seam", "pass", pass, "bottom", s[len(s)-1], "active", img.ActiveWidth())
		if opts.Progress != nil {
			opts.Progress(pass, n)
		}
	}))
	if err != nil {
		return nil, err
	}
	if err := c.Run(ctx, n); err != nil {
		return nil, err
	}
	return seams, nil
}

// FirstSeam returns the minimum-energy seam of img without modifying it.
func FirstSeam(img *seam.Image) (seam.Seam, error) {
	e, err := seam.ComputeEnergy(img)
	if err != nil {
		return nil, err
	}
	return seam.Find(e, img.ActiveWidth())
}

// EnergyMap renders the cumulative energy of img as a grayscale image.
func EnergyMap(img *seam.Image) (*seam.Image, error) {
	e, err := seam.ComputeEnergy(img)
	if err != nil {
		return nil, err
	}
	return imageio.EnergyImage(e, img.ActiveWidth())
}
