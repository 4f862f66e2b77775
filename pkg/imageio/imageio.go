// Package imageio converts between encoded image files and seam.Image.
//
// The carving core works on raw RGB pixel grids; this package is the
// collaborator that decodes and encodes them. Supported formats:
//
//   - ppm: portable pixmap, plain (P3) on output, P3 or P6 on input
//   - ppmraw: portable pixmap, raw (P6)
//   - png, jpeg: standard library codecs
//   - bmp, tiff: golang.org/x/image codecs
//
// Alpha is discarded on input. Color channels are taken unpremultiplied.
package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio/ppm"
)

// Format names an image encoding.
type Format string

// Supported formats.
const (
	FormatPPM    Format = "ppm"
	FormatPPMRaw Format = "ppmraw"
	FormatPNG    Format = "png"
	FormatJPEG   Format = "jpeg"
	FormatBMP    Format = "bmp"
	FormatTIFF   Format = "tiff"
)

// JPEGQuality is the quality used when encoding JPEG output.
const JPEGQuality = 90

// ValidFormats is the set of supported formats.
var ValidFormats = map[Format]bool{
	FormatPPM:    true,
	FormatPPMRaw: true,
	FormatPNG:    true,
	FormatJPEG:   true,
	FormatBMP:    true,
	FormatTIFF:   true,
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPPM, FormatPPMRaw:
		return "image/x-portable-pixmap"
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	}
	return "application/octet-stream"
}

// Ext returns the conventional file extension for f, with the leading dot.
func (f Format) Ext() string {
	switch f {
	case FormatPPM, FormatPPMRaw:
		return ".ppm"
	case FormatJPEG:
		return ".jpg"
	}
	return "." + string(f)
}

// ParseFormat validates a format name. "jpg" and "tif" are accepted aliases.
func ParseFormat(name string) (Format, error) {
	if err := errors.ValidateFormatName(name); err != nil {
		return "", err
	}
	f := Format(strings.ToLower(name))
	switch f {
	case "jpg":
		f = FormatJPEG
	case "tif":
		f = FormatTIFF
	}
	if !ValidFormats[f] {
		return "", errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: ppm, ppmraw, png, jpeg, bmp, tiff)", name)
	}
	return f, nil
}

// FormatFromPath infers a format from a file extension. ".ppm" maps to the
// plain variant.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", errors.New(errors.ErrCodeInvalidFormat, "cannot infer format of %q: no extension", path)
	}
	return ParseFormat(ext)
}

// Sniff detects the format of encoded data from its leading bytes.
func Sniff(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, []byte("P3")):
		return FormatPPM, nil
	case bytes.HasPrefix(data, []byte("P6")):
		return FormatPPMRaw, nil
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, nil
	case bytes.HasPrefix(data, []byte{0xff, 0xd8}):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP, nil
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unrecognized image data")
}

// DecodeOption configures Decode.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	maxPixels int
}

// WithMaxPixels rejects images with more than n pixels. Values outside
// (0, errors.MaxPixels] mean errors.MaxPixels.
func WithMaxPixels(n int) DecodeOption {
	return func(c *decodeConfig) { c.maxPixels = errors.PixelLimit(n) }
}

func newDecodeConfig(opts []DecodeOption) decodeConfig {
	c := decodeConfig{maxPixels: errors.MaxPixels}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// codec pairs a standard image decoder with its header-only reader.
type codec struct {
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var codecs = map[Format]codec{
	FormatPNG:  {png.Decode, png.DecodeConfig},
	FormatJPEG: {jpeg.Decode, jpeg.DecodeConfig},
	FormatBMP:  {bmp.Decode, bmp.DecodeConfig},
	FormatTIFF: {tiff.Decode, tiff.DecodeConfig},
}

// Decode reads an image in format f. The declared size is checked against
// the pixel limit before the pixel data is decoded.
func Decode(r io.Reader, f Format, opts ...DecodeOption) (*seam.Image, error) {
	cfg := newDecodeConfig(opts)
	if f == FormatPPM || f == FormatPPMRaw {
		return ppm.DecodeLimited(r, cfg.maxPixels)
	}
	c, ok := codecs[f]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported input format: %s", f)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "read %s", f)
	}
	hdr, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "decode %s header", f)
	}
	if err := errors.ValidatePixelCount(hdr.Width, hdr.Height, cfg.maxPixels); err != nil {
		return nil, err
	}
	src, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "decode %s", f)
	}
	return FromImage(src)
}

// DecodeBytes sniffs the format of data and decodes it.
func DecodeBytes(data []byte, opts ...DecodeOption) (*seam.Image, Format, error) {
	f, err := Sniff(data)
	if err != nil {
		return nil, "", err
	}
	img, err := Decode(bytes.NewReader(data), f, opts...)
	return img, f, err
}

// Encode writes img in format f. The full physical width is written.
func Encode(w io.Writer, img *seam.Image, f Format) error {
	var err error
	switch f {
	case FormatPPM:
		err = ppm.Encode(w, img)
	case FormatPPMRaw:
		err = ppm.EncodeRaw(w, img)
	case FormatPNG:
		err = png.Encode(w, ToRGBA(img))
	case FormatJPEG:
		err = jpeg.Encode(w, ToRGBA(img), &jpeg.Options{Quality: JPEGQuality})
	case FormatBMP:
		err = bmp.Encode(w, ToRGBA(img))
	case FormatTIFF:
		err = tiff.Encode(w, ToRGBA(img), &tiff.Options{Compression: tiff.Deflate})
	default:
		return errors.New(errors.ErrCodeUnsupported, "unsupported output format: %s", f)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", f)
	}
	return nil
}

// ReadFile decodes the image at path, inferring the format from its contents.
func ReadFile(path string, opts ...DecodeOption) (*seam.Image, Format, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, "", errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	return DecodeBytes(data, opts...)
}

// WriteFile encodes img to path in format f.
func WriteFile(path string, img *seam.Image, f Format) error {
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}

// FromImage copies any image.Image into a new seam.Image.
func FromImage(src image.Image) (*seam.Image, error) {
	b := src.Bounds()
	img, err := seam.NewImage(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < b.Dy(); y++ {
		row := img.Row(y)
		for x := range row {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			row[x] = seam.Pixel{R: c.R, G: c.G, B: c.B}
		}
	}
	return img, nil
}

// ToRGBA converts img to an opaque *image.RGBA covering the physical width.
func ToRGBA(img *seam.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, p := range img.Pixels {
		o := i * 4
		out.Pix[o] = p.R
		out.Pix[o+1] = p.G
		out.Pix[o+2] = p.B
		out.Pix[o+3] = 0xff
	}
	return out
}

// EnergyImage renders the active part of a cumulative energy table as a
// grayscale seam.Image, scaled so the largest value is white. Inactive
// columns are black.
func EnergyImage(e *seam.Energy, active int) (*seam.Image, error) {
	img, err := seam.NewImage(e.Width, e.Height)
	if err != nil {
		return nil, err
	}
	if len(e.Values) != e.Width*e.Height {
		return nil, errors.New(errors.ErrCodeInvalidDimensions,
			"energy table has %d entries, want %d", len(e.Values), e.Width*e.Height)
	}
	if err := errors.ValidateActiveWidth(active, e.Width); err != nil {
		return nil, err
	}
	var maxv uint64
	for row := 0; row < e.Height; row++ {
		for _, v := range e.Row(row, active) {
			if v > maxv {
				maxv = v
			}
		}
	}
	if maxv == 0 {
		return img, nil
	}
	for row := 0; row < e.Height; row++ {
		for col, v := range e.Row(row, active) {
			g := uint8(v * 255 / maxv)
			img.Set(row, col, seam.Pixel{R: g, G: g, B: g})
		}
	}
	return img, nil
}
