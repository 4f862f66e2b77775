package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
	"github.com/matzehuels/seamcarve/pkg/observability"
	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

// Response headers set by the carve endpoint.
const (
	HeaderWidth  = "X-Seamcarve-Width"
	HeaderSeams  = "X-Seamcarve-Seams"
	HeaderCache  = "X-Cache"
	cacheHit     = "HIT"
	cacheMiss    = "MISS"
	contentJSON  = "application/json"
	headerCType  = "Content-Type"
	headerLength = "Content-Length"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type seamResponse struct {
	Seam   []int `json:"seam"`
	Cached bool  `json:"cached"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCarve(w http.ResponseWriter, r *http.Request) {
	opts, err := s.carveOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	input, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.cfg.Runner.Execute(r.Context(), input, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set(headerCType, res.Format.ContentType())
	h.Set(headerLength, strconv.Itoa(len(res.Encoded)))
	h.Set(HeaderWidth, strconv.Itoa(res.Image.ActiveWidth()))
	h.Set(HeaderSeams, strconv.Itoa(len(res.Seams)))
	h.Set(HeaderCache, cacheStatus(res.CacheHit))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Encoded); err != nil {
		s.cfg.Logger.Debug("write response", "id", RequestID(r.Context()), "error", err)
	}
}

func (s *Server) handleSeam(w http.ResponseWriter, r *http.Request) {
	opts, err := s.inputOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	input, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sm, hit, err := s.cfg.Runner.FindSeamWithCacheInfo(r.Context(), input, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(HeaderCache, cacheStatus(hit))
	s.writeJSON(w, http.StatusOK, seamResponse{Seam: sm, Cached: hit})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	opts, err := s.inputOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	input, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, hit, err := s.cfg.Runner.StatsWithCacheInfo(r.Context(), input, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(HeaderCache, cacheStatus(hit))
	s.writeJSON(w, http.StatusOK, st)
}

// carveOptions reads n, format, cropped, clamp and refresh from the query.
func (s *Server) carveOptions(r *http.Request) (pipeline.Options, error) {
	opts, err := s.inputOptions(r)
	if err != nil {
		return opts, err
	}
	q := r.URL.Query()

	raw := q.Get("n")
	if raw == "" {
		return opts, errors.New(errors.ErrCodeInvalidInput, "query parameter n is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid seam count %q", raw)
	}
	opts.N = n

	opts.Format = s.cfg.DefaultFormat
	if name := q.Get("format"); name != "" {
		if opts.Format, err = imageio.ParseFormat(name); err != nil {
			return opts, err
		}
	}
	if opts.Cropped, err = boolParam(q.Get("cropped"), "cropped"); err != nil {
		return opts, err
	}
	if opts.Clamp, err = boolParam(q.Get("clamp"), "clamp"); err != nil {
		return opts, err
	}
	return opts, nil
}

// inputOptions reads the parameters shared by every endpoint.
func (s *Server) inputOptions(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := pipeline.Options{
		Logger:    s.cfg.Logger.With("id", RequestID(r.Context())),
		MaxPixels: s.cfg.MaxPixels,
	}
	var err error
	if name := q.Get("input"); name != "" {
		if opts.InputFormat, err = imageio.ParseFormat(name); err != nil {
			return opts, err
		}
	}
	if opts.Refresh, err = boolParam(q.Get("refresh"), "refresh"); err != nil {
		return opts, err
	}
	return opts, nil
}

func boolParam(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid %s value %q", name, raw)
	}
	return v, nil
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "request body is empty")
	}
	return data, nil
}

func cacheStatus(hit bool) string {
	if hit {
		return cacheHit
	}
	return cacheMiss
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case stderrors.Is(err, context.DeadlineExceeded), errors.Is(err, errors.ErrCodeTimeout):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnsupported:
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := errors.UserMessage(err)
	if status >= 500 {
		observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
	}
	if status == http.StatusInternalServerError {
		s.cfg.Logger.Error("request failed", "id", RequestID(r.Context()), "error", err)
		msg = http.StatusText(status)
	}
	s.writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      string(errors.GetCode(err)),
		RequestID: RequestID(r.Context()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerCType, contentJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.cfg.Logger.Debug("encode response", "error", err)
	}
}
