package errors

import (
	"strings"
	"unicode"
)

// ValidatePath validates a user-supplied file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// MaxPixels is the largest width*height any image may have. Decoders may be
// configured with a lower limit, never a higher one.
const MaxPixels = 1 << 26

// ValidateDimensions checks that an image has a usable size: at least 1x1
// and at most MaxPixels pixels.
func ValidateDimensions(width, height int) error {
	return ValidatePixelCount(width, height, MaxPixels)
}

// ValidatePixelCount checks that width x height is at least 1x1 and holds at
// most limit pixels. A limit outside (0, MaxPixels] means MaxPixels.
// The product is never computed, so oversized headers cannot overflow.
func ValidatePixelCount(width, height, limit int) error {
	if width <= 0 || height <= 0 {
		return New(ErrCodeInvalidDimensions, "image must be at least 1x1, got %dx%d", width, height)
	}
	limit = PixelLimit(limit)
	if width > limit/height {
		return New(ErrCodeInvalidDimensions, "image %dx%d exceeds the %d pixel limit", width, height, limit)
	}
	return nil
}

// PixelLimit normalises a configured pixel limit: values outside
// (0, MaxPixels] become MaxPixels.
func PixelLimit(limit int) int {
	if limit <= 0 || limit > MaxPixels {
		return MaxPixels
	}
	return limit
}

// ValidateActiveWidth checks that active lies in [1, width].
func ValidateActiveWidth(active, width int) error {
	if active < 1 || active > width {
		return New(ErrCodeInvalidDimensions, "active width %d out of range [1, %d]", active, width)
	}
	return nil
}

// ClampSeamCount normalises a requested seam count against the image width.
// Negative counts and counts above width both mean "every column", which is
// how the command line has always behaved.
func ClampSeamCount(n, width int) int {
	if n < 0 || n > width {
		return width
	}
	return n
}

// ValidateSeamCount rejects seam counts the carving loop cannot honour.
// Unlike ClampSeamCount it is strict; the HTTP service uses it so that a bad
// query string is reported instead of silently widened.
func ValidateSeamCount(n, width int) error {
	if n < 0 {
		return New(ErrCodeInvalidInput, "seam count cannot be negative: %d", n)
	}
	if n > width {
		return New(ErrCodeInvalidInput, "cannot remove %d seams from an image %d pixels wide", n, width)
	}
	return nil
}

// ValidateFormatName rejects empty or malformed format names before lookup.
func ValidateFormatName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidFormat, "format cannot be empty")
	}
	if strings.ContainsAny(name, "/\\. ") {
		return New(ErrCodeInvalidFormat, "invalid format name: %q", name)
	}
	return nil
}
