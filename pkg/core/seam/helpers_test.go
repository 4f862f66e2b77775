package seam

import (
	"math/rand/v2"
	"testing"
)

func gray(v uint8) Pixel { return Pixel{v, v, v} }

// mustImage builds an image from rows of equal length.
func mustImage(t *testing.T, rows [][]Pixel) *Image {
	t.Helper()
	h := len(rows)
	w := len(rows[0])
	px := make([]Pixel, 0, w*h)
	for _, r := range rows {
		if len(r) != w {
			t.Fatalf("ragged rows: %d vs %d", len(r), w)
		}
		px = append(px, r...)
	}
	img, err := FromPixels(w, h, px)
	if err != nil {
		t.Fatalf("FromPixels() error: %v", err)
	}
	return img
}

func randomImage(t *testing.T, w, h int, seed uint64) *Image {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img, err := NewImage(w, h)
	if err != nil {
		t.Fatalf("NewImage() error: %v", err)
	}
	for i := range img.Pixels {
		img.Pixels[i] = Pixel{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256))}
	}
	return img
}

func tableFromRows(rows [][]uint64) *Energy {
	e := NewEnergy(len(rows[0]), len(rows))
	for r, row := range rows {
		copy(e.Values[r*e.Width:], row)
	}
	return e
}
