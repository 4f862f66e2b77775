// Package pipeline provides the carving pipeline shared by the CLI and the
// HTTP service.
//
// This package implements the complete decode → carve → encode pipeline so
// every entry point resizes images the same way and shares one cache.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Decode: Parse PPM, PNG, JPEG, BMP or TIFF bytes into a seam.Image
//  2. Carve: Remove N minimum-energy vertical seams
//  3. Encode: Write the result in the requested output format
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    N:      50,
//	    Format: imageio.FormatPNG,
//	}
//	result, err := runner.Execute(ctx, input, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	png := result.Encoded
//
// Run individual stages:
//
//	img, format, err := pipeline.Decode(input, "")
//	seams, err := pipeline.Carve(ctx, img, opts)
//	data, err := pipeline.Encode(img, opts)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/seamcarve/pkg/cache"
	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

// DefaultFormat is the output format when none is given.
const DefaultFormat = imageio.FormatPPM

// AllSeams requests removal of every column. It is only meaningful together
// with Clamp; strict callers reject negative counts.
const AllSeams = -1

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the carving pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// N is the number of seams to remove.
	N int `json:"n"`

	// Clamp maps N < 0 or N > width to width instead of rejecting it.
	Clamp bool `json:"clamp,omitempty"`

	// InputFormat forces the decoder. Empty means detect from content.
	InputFormat imageio.Format `json:"input_format,omitempty"`

	// Format is the output encoding.
	Format imageio.Format `json:"format,omitempty"`

	// Cropped writes only the active columns instead of the full
	// physical width with black padding.
	Cropped bool `json:"cropped,omitempty"`

	// Refresh bypasses cached results.
	Refresh bool `json:"refresh,omitempty"`

	// MaxPixels rejects inputs whose declared size exceeds it. Zero means
	// errors.MaxPixels, which is also the upper bound.
	MaxPixels int `json:"max_pixels,omitempty"`

	// Logger receives per-seam debug output. Runtime only.
	Logger *log.Logger `json:"-"`

	// Progress is called after every removed seam.
	Progress func(done, total int) `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Image is the carved image at its physical size.
	Image *seam.Image

	// InputHash is the content hash of the input bytes.
	InputHash string

	// Seams lists the removed seams in removal order. Each seam indexes
	// columns of the image as it was before that seam was removed.
	Seams []seam.Seam

	// Stats summarises the carved image.
	Stats seam.Statistics

	// Format is the output encoding of Encoded.
	Format imageio.Format

	// Encoded is the carved image in Format.
	Encoded []byte

	// CacheHit reports whether the result came from the cache.
	CacheHit bool

	// Timing contains per-stage durations. Only DecodeTime is set on
	// cache hits.
	Timing Timing
}

// Timing contains pipeline execution durations.
type Timing struct {
	DecodeTime time.Duration
	CarveTime  time.Duration
	EncodeTime time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks option values and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
// The seam count is checked against the image width later, once it is known.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if !imageio.ValidFormats[o.Format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid output format: %q", o.Format)
	}
	if o.InputFormat != "" && !imageio.ValidFormats[o.InputFormat] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid input format: %q", o.InputFormat)
	}
	if o.MaxPixels < 0 || o.MaxPixels > errors.MaxPixels {
		return errors.New(errors.ErrCodeInvalidInput,
			"pixel limit %d outside [0, %d]", o.MaxPixels, errors.MaxPixels)
	}
	if o.N < 0 && !o.Clamp {
		return errors.New(errors.ErrCodeInvalidInput, "seam count cannot be negative: %d", o.N)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// SeamCount resolves N against an image of the given width.
func (o *Options) SeamCount(width int) (int, error) {
	if o.Clamp {
		return errors.ClampSeamCount(o.N, width), nil
	}
	if err := errors.ValidateSeamCount(o.N, width); err != nil {
		return 0, err
	}
	return o.N, nil
}

// decodeOptions returns the decoder settings implied by o.
func (o *Options) decodeOptions() []imageio.DecodeOption {
	return []imageio.DecodeOption{imageio.WithMaxPixels(o.MaxPixels)}
}

// CarveKeyOpts returns cache key options for a carve of the given width.
// The resolved seam count is used so that clamped and explicit requests
// for the same result share an entry.
func (o *Options) CarveKeyOpts(seams int) cache.CarveKeyOpts {
	return cache.CarveKeyOpts{
		Seams:   seams,
		Format:  string(o.Format),
		Cropped: o.Cropped,
	}
}
