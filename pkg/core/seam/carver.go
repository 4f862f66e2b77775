package seam

import (
	"context"

	"github.com/matzehuels/seamcarve/pkg/errors"
)

// Option configures a Carver.
type Option func(*Carver)

// WithSeamFunc registers fn to be called after every removed seam with the
// 1-based pass number. The seam slice is owned by the callee after the call.
func WithSeamFunc(fn func(pass int, s Seam)) Option {
	return func(c *Carver) { c.onSeam = fn }
}

// Carver repeatedly removes minimum-energy seams from one image, reusing a
// single energy table across passes.
type Carver struct {
	img    *Image
	energy *Energy
	passes int
	onSeam func(int, Seam)
}

// NewCarver prepares img for carving. The carver takes ownership of img; the
// caller should not modify it while the carver is in use.
func NewCarver(img *Image, opts ...Option) (*Carver, error) {
	if err := img.checkActive(); err != nil {
		return nil, err
	}
	c := &Carver{img: img, energy: NewEnergy(img.Width, img.Height)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Image returns the image being carved.
func (c *Carver) Image() *Image { return c.img }

// Energy returns the table from the most recent pass.
func (c *Carver) Energy() *Energy { return c.energy }

// Passes returns how many seams have been removed so far.
func (c *Carver) Passes() int { return c.passes }

// Step computes the energy for the current active width, finds the cheapest
// seam, removes it and returns it.
func (c *Carver) Step() (Seam, error) {
	active := c.img.ActiveWidth()
	if err := c.energy.Compute(c.img); err != nil {
		return nil, err
	}
	s, err := Find(c.energy, active)
	if err != nil {
		return nil, err
	}
	if err := c.img.Carve(s); err != nil {
		return nil, err
	}
	c.passes++
	if c.onSeam != nil {
		c.onSeam(c.passes, s)
	}
	return s, nil
}

// Run removes n seams. n must lie in [0, ActiveWidth()]; callers that accept
// looser input should normalise it first with errors.ClampSeamCount.
// Cancellation is checked between passes.
func (c *Carver) Run(ctx context.Context, n int) error {
	if err := errors.ValidateSeamCount(n, c.img.ActiveWidth()); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}
