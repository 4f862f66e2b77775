package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/matzehuels/seamcarve/pkg/cache"
	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
)

// stripes builds a w×h image whose column c has gray level c*40, encoded as
// plain PPM.
func stripes(t *testing.T, w, h int) []byte {
	t.Helper()
	img, err := seam.NewImage(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := uint8(col * 40)
			img.Set(row, col, seam.Pixel{R: v, G: v, B: v})
		}
	}
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, imageio.FormatPPM); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"zero value", Options{}, false},
		{"png", Options{Format: imageio.FormatPNG}, false},
		{"bad output", Options{Format: "gif"}, true},
		{"bad input", Options{InputFormat: "gif"}, true},
		{"negative strict", Options{N: -1}, true},
		{"negative clamped", Options{N: AllSeams, Clamp: true}, false},
		{"pixel limit", Options{MaxPixels: 1024}, false},
		{"negative pixel limit", Options{MaxPixels: -1}, true},
		{"pixel limit above maximum", Options{MaxPixels: errors.MaxPixels + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if tt.opts.Format == "" {
					t.Error("Format default not applied")
				}
				if tt.opts.Logger == nil {
					t.Error("Logger default not applied")
				}
			}
		})
	}

	o := Options{}
	_ = o.ValidateAndSetDefaults()
	if o.Format != DefaultFormat {
		t.Errorf("Format = %q, want %q", o.Format, DefaultFormat)
	}
}

func TestSeamCount(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		width   int
		want    int
		wantErr bool
	}{
		{"within width", Options{N: 3}, 5, 3, false},
		{"exact width", Options{N: 5}, 5, 5, false},
		{"too many strict", Options{N: 6}, 5, 0, true},
		{"too many clamped", Options{N: 6, Clamp: true}, 5, 5, false},
		{"all clamped", Options{N: AllSeams, Clamp: true}, 5, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.SeamCount(tt.width)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SeamCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	input := stripes(t, 4, 2)

	img, f, err := Decode(input, "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f != imageio.FormatPPM || img.Width != 4 || img.Height != 2 {
		t.Errorf("got %s %dx%d", f, img.Width, img.Height)
	}

	if _, _, err := Decode(nil, ""); !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("empty input: err = %v", err)
	}
	if _, _, err := Decode(input, imageio.FormatPNG); err == nil {
		t.Error("decoding PPM as PNG should fail")
	}
}

// oversizedHeaders declare images far larger than their bodies.
var oversizedHeaders = []struct {
	name string
	data []byte
}{
	{"overflowing size", []byte("P6 4294967296 4294967296 255\n")},
	{"huge raw header", []byte("P6 100000 100000 255\n\x00\x00\x00\x00")},
}

func TestRunnerRejectsOversizedImages(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, nil)

	for _, tt := range oversizedHeaders {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(tt.data, ""); !errors.Is(err, errors.ErrCodeInvalidDimensions) {
				t.Errorf("Decode: err = %v, want INVALID_DIMENSIONS", err)
			}
			st, err := r.Stats(ctx, tt.data, Options{})
			if !errors.Is(err, errors.ErrCodeInvalidDimensions) {
				t.Errorf("Stats = %+v, err = %v, want INVALID_DIMENSIONS", st, err)
			}
			if _, err := r.FindSeam(ctx, tt.data, Options{}); !errors.Is(err, errors.ErrCodeInvalidDimensions) {
				t.Errorf("FindSeam: err = %v, want INVALID_DIMENSIONS", err)
			}
			if _, err := r.Execute(ctx, tt.data, Options{N: 1}); !errors.Is(err, errors.ErrCodeInvalidDimensions) {
				t.Errorf("Execute: err = %v, want INVALID_DIMENSIONS", err)
			}
		})
	}
}

func TestRunnerMaxPixels(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	input := stripes(t, 4, 2)

	if _, err := r.Execute(ctx, input, Options{N: 1, MaxPixels: 7}); !errors.Is(err, errors.ErrCodeInvalidDimensions) {
		t.Errorf("limit 7: err = %v, want INVALID_DIMENSIONS", err)
	}
	if _, err := r.Stats(ctx, input, Options{MaxPixels: 7}); !errors.Is(err, errors.ErrCodeInvalidDimensions) {
		t.Errorf("stats limit 7: err = %v, want INVALID_DIMENSIONS", err)
	}
	res, err := r.Execute(ctx, input, Options{N: 1, MaxPixels: 8})
	if err != nil {
		t.Fatalf("limit 8: %v", err)
	}
	if res.Image.ActiveWidth() != 3 {
		t.Errorf("ActiveWidth = %d, want 3", res.Image.ActiveWidth())
	}
}

func TestCarveAndEncode(t *testing.T) {
	img, _, err := Decode(stripes(t, 5, 3), "")
	if err != nil {
		t.Fatal(err)
	}

	var calls []int
	opts := Options{N: 2, Progress: func(done, total int) {
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
		calls = append(calls, done)
	}}
	seams, err := Carve(context.Background(), img, opts)
	if err != nil {
		t.Fatalf("Carve: %v", err)
	}
	if len(seams) != 2 || img.ActiveWidth() != 3 {
		t.Fatalf("seams=%d active=%d", len(seams), img.ActiveWidth())
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("progress calls = %v", calls)
	}

	full, err := Encode(img, Options{})
	if err != nil {
		t.Fatal(err)
	}
	cropped, err := Encode(img, Options{Cropped: true})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(full, []byte("P3\n5 3\n")) {
		t.Errorf("full output header: %q", full[:8])
	}
	if !bytes.HasPrefix(cropped, []byte("P3\n3 3\n")) {
		t.Errorf("cropped output header: %q", cropped[:8])
	}
}

func TestEncodeCroppedEmpty(t *testing.T) {
	img, _, err := Decode(stripes(t, 2, 2), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Carve(context.Background(), img, Options{N: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := Encode(img, Options{Cropped: true}); !errors.Is(err, errors.ErrCodeInvalidDimensions) {
		t.Errorf("err = %v, want INVALID_DIMENSIONS", err)
	}
	// The full-width output is all black but still valid.
	if _, err := Encode(img, Options{}); err != nil {
		t.Errorf("full-width encode: %v", err)
	}
}

func TestRunnerWithoutCacheRecomputes(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, nil)
	defer r.Close()
	input := stripes(t, 6, 4)

	for i := 0; i < 2; i++ {
		res, err := r.Execute(ctx, input, Options{N: 1})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if res.CacheHit {
			t.Errorf("run %d hit the cache; a nil cache should never hit", i)
		}
	}
}

func TestRunnerExecute(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	input := stripes(t, 6, 4)

	first, err := r.Execute(ctx, input, Options{N: 2, Format: imageio.FormatPNG})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.CacheHit {
		t.Error("first run should miss the cache")
	}
	if first.Image.ActiveWidth() != 4 || len(first.Seams) != 2 {
		t.Errorf("active=%d seams=%d", first.Image.ActiveWidth(), len(first.Seams))
	}
	if first.InputHash != cache.Hash(input) {
		t.Error("InputHash should hash the raw input")
	}
	if f, err := imageio.Sniff(first.Encoded); err != nil || f != imageio.FormatPNG {
		t.Errorf("encoded format = %s, %v", f, err)
	}

	second, err := r.Execute(ctx, input, Options{N: 2, Format: imageio.FormatPNG})
	if err != nil {
		t.Fatalf("Execute (cached): %v", err)
	}
	if !second.CacheHit {
		t.Error("second run should hit the cache")
	}
	if !bytes.Equal(first.Encoded, second.Encoded) {
		t.Error("cached output differs")
	}
	if second.Image.ActiveWidth() != 4 || second.Stats != first.Stats {
		t.Errorf("cached result: active=%d stats=%+v", second.Image.ActiveWidth(), second.Stats)
	}
	for i := range first.Seams {
		for row := range first.Seams[i] {
			if first.Seams[i][row] != second.Seams[i][row] {
				t.Fatalf("seam %d differs at row %d", i, row)
			}
		}
	}

	refreshed, err := r.Execute(ctx, input, Options{N: 2, Format: imageio.FormatPNG, Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheHit {
		t.Error("Refresh should bypass the cache")
	}

	other, err := r.Execute(ctx, input, Options{N: 3, Format: imageio.FormatPNG})
	if err != nil {
		t.Fatal(err)
	}
	if other.CacheHit {
		t.Error("different seam count should miss the cache")
	}
}

func TestRunnerExecuteClamp(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	input := stripes(t, 3, 2)

	res, err := r.Execute(context.Background(), input, Options{N: AllSeams, Clamp: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Image.ActiveWidth() != 0 || len(res.Seams) != 3 {
		t.Errorf("active=%d seams=%d, want 0 and 3", res.Image.ActiveWidth(), len(res.Seams))
	}
	if res.Stats.Brightness != 0 {
		t.Errorf("fully carved image should be black, brightness=%d", res.Stats.Brightness)
	}

	if _, err := r.Execute(context.Background(), input, Options{N: 4}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("strict overflow: err = %v", err)
	}
}

func TestRunnerExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(nil, nil, nil)
	if _, err := r.Execute(ctx, stripes(t, 4, 2), Options{N: 2}); err == nil {
		t.Error("canceled context should abort carving")
	}
}

func TestRunnerFindSeam(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	input := stripes(t, 5, 3)

	s, hit, err := r.FindSeamWithCacheInfo(ctx, input, Options{})
	if err != nil {
		t.Fatalf("FindSeam: %v", err)
	}
	if hit {
		t.Error("first lookup should miss")
	}
	if len(s) != 3 {
		t.Fatalf("seam length = %d, want 3", len(s))
	}
	if err := s.Validate(3, 5); err != nil {
		t.Errorf("seam invalid: %v", err)
	}

	again, hit, err := r.FindSeamWithCacheInfo(ctx, input, Options{})
	if err != nil || !hit {
		t.Fatalf("second lookup: hit=%v err=%v", hit, err)
	}
	for i := range s {
		if s[i] != again[i] {
			t.Errorf("cached seam differs: %v vs %v", s, again)
			break
		}
	}
}

func TestRunnerStats(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	input := stripes(t, 3, 2)

	st, err := r.Stats(ctx, input, Options{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	// Columns are 0, 40, 80: mean 40.
	want := seam.Statistics{Width: 3, Height: 2, Brightness: 40}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}

	cached, hit, err := r.StatsWithCacheInfo(ctx, input, Options{})
	if err != nil || !hit || cached != want {
		t.Errorf("cached stats = %+v hit=%v err=%v", cached, hit, err)
	}
}

func TestEnergyMap(t *testing.T) {
	img, _, err := Decode(stripes(t, 4, 2), "")
	if err != nil {
		t.Fatal(err)
	}
	m, err := EnergyMap(img)
	if err != nil {
		t.Fatalf("EnergyMap: %v", err)
	}
	if m.Width != 4 || m.Height != 2 {
		t.Errorf("size = %dx%d", m.Width, m.Height)
	}
	if p := m.At(0, 0); p != seam.Black {
		t.Errorf("origin = %+v, want black", p)
	}
}

func TestFirstSeamLeavesImage(t *testing.T) {
	img, _, err := Decode(stripes(t, 4, 3), "")
	if err != nil {
		t.Fatal(err)
	}
	before := img.Clone()
	if _, err := FirstSeam(img); err != nil {
		t.Fatal(err)
	}
	if img.ActiveWidth() != 4 {
		t.Error("FirstSeam should not carve")
	}
	for i := range img.Pixels {
		if img.Pixels[i] != before.Pixels[i] {
			t.Fatal("FirstSeam modified pixels")
		}
	}
}
