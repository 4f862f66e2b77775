package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/seamcarve/pkg/cache"
	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// cachedCarve is the cache payload of a carve run.
type cachedCarve struct {
	Width   int     `cbor:"1,keyasint"`
	Height  int     `cbor:"2,keyasint"`
	Active  int     `cbor:"3,keyasint"`
	Pixels  []byte  `cbor:"4,keyasint"`
	Seams   [][]int `cbor:"5,keyasint"`
	Encoded []byte  `cbor:"6,keyasint"`
}

// Execute runs the complete decode → carve → encode pipeline with caching.
func (r *Runner) Execute(ctx context.Context, input []byte, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	hooks := observability.Pipeline()
	result := &Result{
		InputHash: cache.Hash(input),
		Format:    opts.Format,
	}

	// Stage 1: Decode
	decodeStart := time.Now()
	img, inFormat, err := Decode(input, opts.InputFormat, opts.decodeOptions()...)
	result.Timing.DecodeTime = time.Since(decodeStart)
	if err != nil {
		hooks.OnDecodeComplete(ctx, string(opts.InputFormat), 0, 0, result.Timing.DecodeTime, err)
		return nil, fmt.Errorf("decode: %w", err)
	}
	hooks.OnDecodeComplete(ctx, string(inFormat), img.Width, img.Height, result.Timing.DecodeTime, nil)

	r.Logger.Debug("decoded image",
		"format", inFormat,
		"width", img.Width,
		"height", img.Height,
		"duration", result.Timing.DecodeTime)

	n, err := opts.SeamCount(img.ActiveWidth())
	if err != nil {
		return nil, err
	}

	cacheKey := r.Keyer.CarveKey(result.InputHash, opts.CarveKeyOpts(n))
	if !opts.Refresh {
		if cached, ok := r.loadCarve(ctx, cacheKey); ok {
			if err := result.fill(cached); err == nil {
				result.CacheHit = true
				r.Logger.Info("carved image (cached)", "seams", n, "width", img.Width-n)
				return result, nil
			}
			// If deserialization fails, fall through to recompute
		}
	}

	// Stage 2: Carve
	carveStart := time.Now()
	hooks.OnCarveStart(ctx, img.Width, img.Height, n)
	seams, err := carveN(ctx, img, n, &opts)
	result.Timing.CarveTime = time.Since(carveStart)
	hooks.OnCarveComplete(ctx, len(seams), result.Timing.CarveTime, err)
	if err != nil {
		return nil, fmt.Errorf("carve: %w", err)
	}
	result.Image = img
	result.Seams = seams
	result.Stats = seam.Stats(img)

	r.Logger.Info("carved image",
		"seams", len(seams),
		"width", img.ActiveWidth(),
		"duration", result.Timing.CarveTime)

	// Stage 3: Encode
	encodeStart := time.Now()
	encoded, err := Encode(img, opts)
	result.Timing.EncodeTime = time.Since(encodeStart)
	hooks.OnEncodeComplete(ctx, string(opts.Format), len(encoded), result.Timing.EncodeTime, err)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	result.Encoded = encoded

	r.Logger.Debug("encoded image",
		"format", opts.Format,
		"bytes", len(encoded),
		"duration", result.Timing.EncodeTime)

	r.storeCarve(ctx, cacheKey, result)
	return result, nil
}

// FindSeamWithCacheInfo returns the first minimum-energy seam of the input
// image with caching and returns cache hit info.
func (r *Runner) FindSeamWithCacheInfo(ctx context.Context, input []byte, opts Options) (seam.Seam, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	inputHash := cache.Hash(input)
	cacheKey := r.Keyer.SeamKey(inputHash)

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cols []int
			if err := cache.Unmarshal(data, &cols); err == nil {
				observability.Cache().OnCacheHit(ctx, "seam")
				return seam.Seam(cols), true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "seam")
	}

	img, _, err := Decode(input, opts.InputFormat, opts.decodeOptions()...)
	if err != nil {
		return nil, false, fmt.Errorf("decode: %w", err)
	}
	s, err := FirstSeam(img)
	if err != nil {
		return nil, false, err
	}

	if data, err := cache.Marshal([]int(s)); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLSeam); err == nil {
			observability.Cache().OnCacheSet(ctx, "seam", len(data))
		}
	}
	return s, false, nil
}

// FindSeam is a convenience wrapper that calls FindSeamWithCacheInfo and discards the cache hit info.
func (r *Runner) FindSeam(ctx context.Context, input []byte, opts Options) (seam.Seam, error) {
	s, _, err := r.FindSeamWithCacheInfo(ctx, input, opts)
	return s, err
}

// StatsWithCacheInfo returns statistics of the input image with caching and
// returns cache hit info.
func (r *Runner) StatsWithCacheInfo(ctx context.Context, input []byte, opts Options) (seam.Statistics, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return seam.Statistics{}, false, err
	}
	cacheKey := r.Keyer.StatsKey(cache.Hash(input))

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var st seam.Statistics
			if err := cache.Unmarshal(data, &st); err == nil {
				observability.Cache().OnCacheHit(ctx, "stats")
				return st, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "stats")
	}

	img, _, err := Decode(input, opts.InputFormat, opts.decodeOptions()...)
	if err != nil {
		return seam.Statistics{}, false, fmt.Errorf("decode: %w", err)
	}
	st := seam.Stats(img)

	if data, err := cache.Marshal(st); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLStats); err == nil {
			observability.Cache().OnCacheSet(ctx, "stats", len(data))
		}
	}
	return st, false, nil
}

// Stats is a convenience wrapper that calls StatsWithCacheInfo and discards the cache hit info.
func (r *Runner) Stats(ctx context.Context, input []byte, opts Options) (seam.Statistics, error) {
	st, _, err := r.StatsWithCacheInfo(ctx, input, opts)
	return st, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) loadCarve(ctx context.Context, key string) (cachedCarve, bool) {
	var cached cachedCarve
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "error", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "carve")
		return cached, false
	}
	if err := cache.Unmarshal(data, &cached); err != nil {
		r.Logger.Debug("discarding unreadable cache entry", "key", key, "error", err)
		observability.Cache().OnCacheMiss(ctx, "carve")
		return cached, false
	}
	observability.Cache().OnCacheHit(ctx, "carve")
	return cached, true
}

func (r *Runner) storeCarve(ctx context.Context, key string, res *Result) {
	cached := cachedCarve{
		Width:   res.Image.Width,
		Height:  res.Image.Height,
		Active:  res.Image.ActiveWidth(),
		Pixels:  packPixels(res.Image.Pixels),
		Seams:   make([][]int, len(res.Seams)),
		Encoded: res.Encoded,
	}
	for i, s := range res.Seams {
		cached.Seams[i] = s
	}
	data, err := cache.Marshal(cached)
	if err != nil {
		r.Logger.Debug("cannot encode cache entry", "error", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLCarve); err != nil {
		r.Logger.Warn("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "carve", len(data))
}

// fill restores a result from a cache entry.
func (res *Result) fill(c cachedCarve) error {
	pixels, err := unpackPixels(c.Pixels, c.Width*c.Height)
	if err != nil {
		return err
	}
	img, err := seam.FromPixels(c.Width, c.Height, pixels)
	if err != nil {
		return err
	}
	if err := img.Restrict(c.Active); err != nil {
		return err
	}
	res.Image = img
	res.Seams = make([]seam.Seam, len(c.Seams))
	for i, s := range c.Seams {
		res.Seams[i] = s
	}
	res.Stats = seam.Stats(img)
	res.Encoded = c.Encoded
	return nil
}

func packPixels(px []seam.Pixel) []byte {
	out := make([]byte, 0, 3*len(px))
	for _, p := range px {
		out = append(out, p.R, p.G, p.B)
	}
	return out
}

func unpackPixels(data []byte, n int) ([]seam.Pixel, error) {
	if len(data) != 3*n {
		return nil, fmt.Errorf("cached pixel data has %d bytes, want %d", len(data), 3*n)
	}
	px := make([]seam.Pixel, n)
	for i := range px {
		px[i] = seam.Pixel{R: data[3*i], G: data[3*i+1], B: data[3*i+2]}
	}
	return px, nil
}
