package seam

import (
	"github.com/matzehuels/seamcarve/pkg/errors"
)

// Energy is a cumulative minimum-energy table with the same physical layout
// as the image it was computed from.
//
// After Compute, Values[row*Width+col] for col < active width is the lowest
// total energy of any connected top-to-bottom path ending at (row, col).
// Entries at or beyond the active width are stale.
type Energy struct {
	Width  int
	Height int
	Values []uint64
}

// NewEnergy allocates a zeroed table for a width x height image.
func NewEnergy(width, height int) *Energy {
	return &Energy{Width: width, Height: height, Values: make([]uint64, width*height)}
}

// At returns the table entry at (row, col).
func (e *Energy) At(row, col int) uint64 {
	return e.Values[row*e.Width+col]
}

// Row returns the first n entries of a row.
func (e *Energy) Row(row, n int) []uint64 {
	start := row * e.Width
	return e.Values[start : start+n]
}

// Diff returns the squared RGB distance between two pixels.
func Diff(a, b Pixel) uint64 {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return uint64(dr*dr + dg*dg + db*db)
}

// ComputeEnergy allocates a table sized to img and fills it for the image's
// current active width.
func ComputeEnergy(img *Image) (*Energy, error) {
	e := NewEnergy(img.Width, img.Height)
	if err := e.Compute(img); err != nil {
		return nil, err
	}
	return e, nil
}

// Compute overwrites the table for columns below img.ActiveWidth().
// The table must have the image's physical dimensions.
func (e *Energy) Compute(img *Image) error {
	if err := img.checkActive(); err != nil {
		return err
	}
	if e.Width != img.Width || e.Height != img.Height || len(e.Values) != e.Width*e.Height {
		return errors.New(errors.ErrCodeInvalidDimensions,
			"energy table is %dx%d, image is %dx%d", e.Width, e.Height, img.Width, img.Height)
	}

	w, active := img.Width, img.active

	// Local energy: gradient to the left and upper neighbours.
	for row := 0; row < img.Height; row++ {
		base := row * w
		for col := 0; col < active; col++ {
			p := img.Pixels[base+col]
			var local uint64
			if row > 0 {
				local += Diff(p, img.Pixels[base-w+col])
			}
			if col > 0 {
				local += Diff(p, img.Pixels[base+col-1])
			}
			e.Values[base+col] = local
		}
	}

	for row := 1; row < img.Height; row++ {
		prev := e.Row(row-1, active)
		cur := e.Row(row, active)
		for col := range cur {
			cur[col] += minAbove(prev, col)
		}
	}
	return nil
}

// minAbove returns the cheapest of prev[col-1], prev[col], prev[col+1],
// clamped to the slice.
func minAbove(prev []uint64, col int) uint64 {
	m := prev[col]
	if col > 0 && prev[col-1] < m {
		m = prev[col-1]
	}
	if col+1 < len(prev) && prev[col+1] < m {
		m = prev[col+1]
	}
	return m
}
