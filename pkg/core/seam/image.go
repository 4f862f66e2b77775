package seam

import (
	"github.com/matzehuels/seamcarve/pkg/errors"
)

// Pixel is a single 8-bit RGB sample.
type Pixel struct {
	R, G, B uint8
}

// Black is written into columns vacated by a carve.
var Black = Pixel{}

// Image is a fixed-size row-major pixel buffer with a shrinking active width.
//
// Width and Height are the physical dimensions and never change. Columns with
// index >= ActiveWidth() are logically deleted; they are only ever written
// (with Black) and never read by the carving code.
type Image struct {
	Width  int
	Height int
	Pixels []Pixel

	active int
}

// NewImage allocates a black image of the given size with the full width active.
func NewImage(width, height int) (*Image, error) {
	if err := errors.ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	return &Image{
		Width:  width,
		Height: height,
		Pixels: make([]Pixel, width*height),
		active: width,
	}, nil
}

// FromPixels wraps an existing row-major buffer. The slice is used directly,
// not copied.
func FromPixels(width, height int, pixels []Pixel) (*Image, error) {
	if err := errors.ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	if len(pixels) != width*height {
		return nil, errors.New(errors.ErrCodeInvalidDimensions,
			"pixel buffer has %d entries, want %dx%d=%d", len(pixels), width, height, width*height)
	}
	return &Image{Width: width, Height: height, Pixels: pixels, active: width}, nil
}

// ActiveWidth returns the number of leading columns still part of the image.
func (img *Image) ActiveWidth() int { return img.active }

// Restrict narrows the active width to w. The active width can only shrink.
func (img *Image) Restrict(w int) error {
	if w < 0 || w > img.active {
		return errors.New(errors.ErrCodeInvalidDimensions,
			"cannot restrict active width %d to %d", img.active, w)
	}
	img.active = w
	return nil
}

// At returns the pixel at (row, col) of the physical buffer.
func (img *Image) At(row, col int) Pixel {
	return img.Pixels[row*img.Width+col]
}

// Set writes the pixel at (row, col) of the physical buffer.
func (img *Image) Set(row, col int, p Pixel) {
	img.Pixels[row*img.Width+col] = p
}

// Row returns the full physical row as a sub-slice of Pixels.
func (img *Image) Row(row int) []Pixel {
	start := row * img.Width
	return img.Pixels[start : start+img.Width]
}

// ActiveRow returns the active part of a row as a sub-slice of Pixels.
func (img *Image) ActiveRow(row int) []Pixel {
	start := row * img.Width
	return img.Pixels[start : start+img.active]
}

// Clone returns a deep copy, including the active width.
func (img *Image) Clone() *Image {
	px := make([]Pixel, len(img.Pixels))
	copy(px, img.Pixels)
	return &Image{Width: img.Width, Height: img.Height, Pixels: px, active: img.active}
}

// Cropped returns a new image holding only the active columns. It returns
// nil when nothing is left.
func (img *Image) Cropped() *Image {
	if img.active == 0 {
		return nil
	}
	out := &Image{
		Width:  img.active,
		Height: img.Height,
		Pixels: make([]Pixel, img.active*img.Height),
		active: img.active,
	}
	for row := 0; row < img.Height; row++ {
		copy(out.Row(row), img.ActiveRow(row))
	}
	return out
}

func (img *Image) checkActive() error {
	if len(img.Pixels) != img.Width*img.Height {
		return errors.New(errors.ErrCodeInvalidDimensions,
			"pixel buffer has %d entries, want %d", len(img.Pixels), img.Width*img.Height)
	}
	if err := errors.ValidateDimensions(img.Width, img.Height); err != nil {
		return err
	}
	return errors.ValidateActiveWidth(img.active, img.Width)
}
