// Package cache stores carving results keyed by input content and options.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one file per entry under a directory (CLI default)
//   - [RedisCache]: a shared Redis instance (HTTP service)
//   - [NullCache]: stores nothing (--no-cache)
//
// Keys come from a [Keyer]. [DefaultKeyer] derives them from a BLAKE3 hash
// of the encoded input image plus the options that affect the output, so the
// same file carved the same way always maps to the same entry.
// [ScopedKeyer] adds a prefix for isolation between tenants or test runs.
//
// Values are opaque bytes. [Marshal] and [Unmarshal] provide the compact
// CBOR + zstd encoding used for structured entries.
package cache

import (
	"context"
	"time"
)

// Default time-to-live per entry kind.
const (
	TTLCarve = 7 * 24 * time.Hour
	TTLSeam  = 7 * 24 * time.Hour
	TTLStats = 30 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// CarveKeyOpts lists the options that change a carve result.
type CarveKeyOpts struct {
	Seams   int    `json:"seams"`
	Format  string `json:"format"`
	Cropped bool   `json:"cropped"`
}

// Keyer generates cache keys.
type Keyer interface {
	// CarveKey identifies a carved image.
	CarveKey(inputHash string, opts CarveKeyOpts) string

	// SeamKey identifies the first minimum-energy seam of an image.
	SeamKey(inputHash string) string

	// StatsKey identifies the statistics of an image.
	StatsKey(inputHash string) string
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// CarveKey returns "carve:<hash of input and options>".
func (DefaultKeyer) CarveKey(inputHash string, opts CarveKeyOpts) string {
	return hashKey("carve", inputHash, opts)
}

// SeamKey returns "seam:<input hash>".
func (DefaultKeyer) SeamKey(inputHash string) string {
	return "seam:" + inputHash
}

// StatsKey returns "stats:<input hash>".
func (DefaultKeyer) StatsKey(inputHash string) string {
	return "stats:" + inputHash
}
