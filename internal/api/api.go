// Package api exposes the HTTP surface of the service: song upload, job
// status polling, result download, and cancellation. Health and metrics
// endpoints are mounted alongside by [Server.Routes].
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chordsinger/chordsinger/internal/health"
	"github.com/chordsinger/chordsinger/internal/job"
	"github.com/chordsinger/chordsinger/internal/observe"
	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/music"
)

const defaultMaxUploadMB = 64

// Server wires the job layer to HTTP handlers. All fields except Jobs and
// Processor are optional.
type Server struct {
	// Jobs is the in-memory job registry. Required.
	Jobs *job.Registry

	// Processor runs accepted jobs. Required.
	Processor *job.Processor

	// Health serves /healthz and /readyz. Nil mounts a checker-less handler.
	Health *health.Handler

	// Metrics backs the HTTP middleware. Defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// MaxUploadMB bounds the multipart request size. Defaults to 64.
	MaxUploadMB int

	// SampleRate is the pipeline's working rate. Uploaded songs arriving at
	// a different rate are resampled on decode; zero keeps the upload's own
	// rate.
	SampleRate int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Routes returns the fully assembled handler: API routes wrapped in the
// observability middleware, plus health and Prometheus metrics endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process-song", s.handleProcessSong)
	mux.HandleFunc("GET /status/{id}", s.handleStatus)
	mux.HandleFunc("GET /download/{id}", s.handleDownload)
	mux.HandleFunc("POST /cancel/{id}", s.handleCancel)

	h := s.Health
	if h == nil {
		h = health.New()
	}
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics())(mux)
}

// acceptedResponse is the body returned by a successful upload.
type acceptedResponse struct {
	JobID  string    `json:"job_id"`
	Status job.Phase `json:"status"`
}

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}

// handleProcessSong accepts a multipart upload with three parts:
//
//   - "song": the instrumental as a WAV file (required)
//   - "chords": the chord timeline as a JSON array (required)
//   - "melody": the melody contour as a JSON array (optional)
//
// It registers a job, starts processing in the background, and answers 202
// with the job ID for status polling.
func (s *Server) handleProcessSong(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.MaxUploadMB)
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadMB
	}
	maxBytes <<= 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	song, err := s.decodeSong(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	chords, err := decodeChords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	melody, err := decodeMelody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	j := s.Jobs.Create()
	req := job.Request{Song: song, Chords: chords, Melody: melody}

	// The request context dies with the upload response; jobs live until
	// they finish or are cancelled explicitly.
	go s.Processor.Process(context.WithoutCancel(r.Context()), j, req)

	s.logger().Info("job accepted",
		"job_id", j.ID(),
		"song_sec", song.Seconds(),
		"chords", len(chords),
		"melody_frames", len(melody))
	writeJSON(w, http.StatusAccepted, acceptedResponse{JobID: j.ID().String(), Status: job.PhaseQueued})
}

// handleStatus answers with the job's current status snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, j.Status())
}

// handleDownload streams the finished mix as a WAV file. A job still in
// flight answers 409; a failed job answers 410 with its error.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	mix, err := j.Result()
	switch {
	case errors.Is(err, job.ErrNotFinished):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusGone, err)
		return
	}

	data, err := audio.EncodeWAVBytes(mix)
	if err != nil {
		s.logger().Error("encoding result failed", "job_id", j.ID(), "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("encoding result failed"))
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", j.ID().String()+".wav"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleCancel requests the job stop. Idempotent; cancelling a finished job
// is a no-op and still answers 202.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	j.Cancel()
	writeJSON(w, http.StatusAccepted, j.Status())
}

// lookupJob resolves the {id} path segment to a registered job, writing the
// error response itself when the lookup fails.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid job id: %w", err))
		return nil, false
	}
	j, err := s.Jobs.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return j, true
}

// decodeSong reads the "song" multipart file as a WAV clip.
func (s *Server) decodeSong(r *http.Request) (audio.Clip, error) {
	f, _, err := r.FormFile("song")
	if err != nil {
		return audio.Clip{}, fmt.Errorf(`missing "song" file part: %w`, err)
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(f)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("song: %w", err)
	}
	if s.SampleRate > 0 && clip.Rate != s.SampleRate {
		clip = clip.Resample(s.SampleRate)
	}
	return clip, nil
}

// decodeChords reads the "chords" part (file or form field) as a chord
// timeline. Symbols are parsed here so malformed documents fail the upload,
// not the job; unparsable individual symbols are allowed through — the
// scheduler spells those out.
func decodeChords(r *http.Request) ([]music.ChordEvent, error) {
	raw, err := formDocument(r, "chords")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New(`missing "chords" part`)
	}

	var events []music.ChordEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("chords: %w", err)
	}
	for i := range events {
		// Best effort; ParseSymbol errors are resolved downstream.
		_ = events[i].ParseSymbol()
	}
	if err := music.ValidateTimeline(events); err != nil {
		return nil, err
	}
	return events, nil
}

// decodeMelody reads the optional "melody" part as a contour. Absence is not
// an error: the job then runs in plain spoken mode.
func decodeMelody(r *http.Request) (music.MelodyContour, error) {
	raw, err := formDocument(r, "melody")
	if err != nil || raw == nil {
		return nil, nil
	}

	var contour music.MelodyContour
	if err := json.Unmarshal(raw, &contour); err != nil {
		return nil, fmt.Errorf("melody: %w", err)
	}
	return contour, nil
}

// formDocument fetches a named part as raw bytes, accepting either a file
// part or a plain form value.
func formDocument(r *http.Request, name string) ([]byte, error) {
	if f, _, err := r.FormFile(name); err == nil {
		defer f.Close()
		buf, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return buf, nil
	}
	if v := r.FormValue(name); v != "" {
		return []byte(v), nil
	}
	return nil, nil
}

func (s *Server) metrics() *observe.Metrics {
	if s.Metrics != nil {
		return s.Metrics
	}
	return observe.DefaultMetrics()
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding response failed"}`, http.StatusInternalServerError)
	}
}

// writeError encodes err as a JSON error body.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
