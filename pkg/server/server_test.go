package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/seamcarve/pkg/cache"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

// 4×2 image; the second column is much brighter than its neighbours.
const testPPM = "P3\n4 2\n255\n" +
	"10 10 10 250 250 250 12 12 12 14 14 14\n" +
	"10 10 10 250 250 250 12 12 12 14 14 14\n"

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := pipeline.NewRunner(c, cache.NewScopedKeyer(nil, "serve:"), nil)
	t.Cleanup(func() { runner.Close() })

	cfg := Config{Runner: runner}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without runner should fail")
	}
	if _, err := New(Config{Runner: pipeline.NewRunner(nil, nil, nil), DefaultFormat: "gif"}); err == nil {
		t.Error("New with invalid default format should fail")
	}
	if _, err := New(Config{Runner: pipeline.NewRunner(nil, nil, nil), MaxPixels: -1}); err == nil {
		t.Error("New with negative max pixels should fail")
	}
	if _, err := New(Config{Runner: pipeline.NewRunner(nil, nil, nil), MaxPixels: errors.MaxPixels + 1}); err == nil {
		t.Error("New with max pixels above the hard limit should fail")
	}
}

func TestOversizedHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	bodies := []struct {
		name string
		body string
	}{
		{"overflowing product", "P6 4294967296 4294967296 255\n"},
		{"tiny body", "P6 100000 100000 255\n\x00\x00\x00"},
	}
	targets := []string{"/v1/carve?n=1", "/v1/seam", "/v1/stats"}

	for _, b := range bodies {
		for _, target := range targets {
			t.Run(b.name+" "+target, func(t *testing.T) {
				rec := do(t, s, http.MethodPost, target, b.body)
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
				}
				if resp := decodeError(t, rec); resp.Code != string(errors.ErrCodeInvalidDimensions) {
					t.Errorf("code = %q, want INVALID_DIMENSIONS", resp.Code)
				}
			})
		}
	}
}

func TestConfigMaxPixels(t *testing.T) {
	// testPPM is 4x2.
	small := newTestServer(t, func(c *Config) { c.MaxPixels = 7 })
	rec := do(t, small, http.MethodPost, "/v1/stats", testPPM)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != string(errors.ErrCodeInvalidDimensions) {
		t.Errorf("code = %q, want INVALID_DIMENSIONS", resp.Code)
	}

	exact := newTestServer(t, func(c *Config) { c.MaxPixels = 8 })
	if rec := do(t, exact, http.MethodPost, "/v1/carve?n=1", testPPM); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request ID header")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, nil)

	const id = "3b241101-e2bb-4255-8caf-4136c566a962"
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Errorf("request ID = %q, want %q", got, id)
	}

	// Malformed IDs are replaced.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got == "not a uuid" || got == "" {
		t.Errorf("request ID = %q, want a fresh UUID", got)
	}
}

func TestCarve(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/v1/carve?n=1&cropped=true", testPPM)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(HeaderWidth); got != "3" {
		t.Errorf("%s = %q, want 3", HeaderWidth, got)
	}
	if got := rec.Header().Get(HeaderSeams); got != "1" {
		t.Errorf("%s = %q, want 1", HeaderSeams, got)
	}
	if got := rec.Header().Get(HeaderCache); got != cacheMiss {
		t.Errorf("%s = %q, want MISS", HeaderCache, got)
	}
	if got := rec.Header().Get("Content-Type"); got != imageio.FormatPPM.ContentType() {
		t.Errorf("Content-Type = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("P3\n3 2\n255\n")) {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/v1/carve?n=1&cropped=true", testPPM)
	if got := rec.Header().Get(HeaderCache); got != cacheHit {
		t.Errorf("second request %s = %q, want HIT", HeaderCache, got)
	}
}

func TestCarveFormats(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.DefaultFormat = imageio.FormatPNG })

	rec := do(t, s, http.MethodPost, "/v1/carve?n=2", testPPM)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if f, err := imageio.Sniff(rec.Body.Bytes()); err != nil || f != imageio.FormatPNG {
		t.Errorf("default format: got %s, %v", f, err)
	}

	rec = do(t, s, http.MethodPost, "/v1/carve?n=2&format=bmp", testPPM)
	if f, err := imageio.Sniff(rec.Body.Bytes()); err != nil || f != imageio.FormatBMP {
		t.Errorf("explicit format: got %s, %v", f, err)
	}
}

func TestCarveErrors(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MaxBodyBytes = 64 })

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"missing n", "/v1/carve", testPPM[:40], http.StatusBadRequest, "INVALID_INPUT"},
		{"bad n", "/v1/carve?n=abc", "P3\n1 1\n255\n0 0 0\n", http.StatusBadRequest, "INVALID_INPUT"},
		{"too many seams", "/v1/carve?n=5", "P3\n1 1\n255\n0 0 0\n", http.StatusBadRequest, "INVALID_INPUT"},
		{"negative seams", "/v1/carve?n=-1", "P3\n1 1\n255\n0 0 0\n", http.StatusBadRequest, "INVALID_INPUT"},
		{"bad format", "/v1/carve?n=1&format=gif", "P3\n1 1\n255\n0 0 0\n", http.StatusBadRequest, "INVALID_FORMAT"},
		{"bad cropped", "/v1/carve?n=1&cropped=maybe", "P3\n1 1\n255\n0 0 0\n", http.StatusBadRequest, "INVALID_INPUT"},
		{"empty body", "/v1/carve?n=1", "", http.StatusBadRequest, "INVALID_IMAGE"},
		{"garbage body", "/v1/carve?n=1", "hello", http.StatusBadRequest, "INVALID_FORMAT"},
		{"body too large", "/v1/carve?n=1", strings.Repeat("0 ", 64), http.StatusRequestEntityTooLarge, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			resp := decodeError(t, rec)
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
			if resp.RequestID == "" {
				t.Error("error response should carry the request ID")
			}
		})
	}
}

func TestCarveClamp(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/v1/carve?n=10&clamp=true", testPPM)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(HeaderWidth); got != "0" {
		t.Errorf("%s = %q, want 0", HeaderWidth, got)
	}
}

func TestSeam(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/v1/seam", testPPM)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp seamResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Seam) != 2 {
		t.Fatalf("seam = %v, want 2 rows", resp.Seam)
	}
	for _, col := range resp.Seam {
		if col < 0 || col >= 4 {
			t.Errorf("seam column %d out of range", col)
		}
	}
	if resp.Cached {
		t.Error("first request should not be cached")
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/v1/stats", testPPM)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var st struct {
		Width      int `json:"width"`
		Height     int `json:"height"`
		Brightness int `json:"brightness"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	// (10 + 250 + 12 + 14) / 4 = 71
	if st.Width != 4 || st.Height != 2 || st.Brightness != 71 {
		t.Errorf("stats = %+v", st)
	}
}

func TestNotFoundAndMethod(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/v1/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/v1/carve", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/carve status = %d", rec.Code)
	}
}

func TestRecoverer(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServeShutdown(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.Addr = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("Serve returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
