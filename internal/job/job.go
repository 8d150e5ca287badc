// Package job tracks song-processing jobs and runs the vocal pipeline over
// them. Jobs live in memory only: the service is restart-cheap and the API
// contract promises no persistence across restarts.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chordsinger/chordsinger/pkg/audio"
)

// Phase is the coarse processing stage exposed by the status API.
type Phase string

const (
	PhaseQueued           Phase = "queued"
	PhasePreprocessing    Phase = "preprocessing"
	PhaseSeparatingVocals Phase = "separating_vocals"
	PhaseDetectingChords  Phase = "detecting_chords"
	PhaseExtractingMelody Phase = "extracting_melody"
	PhaseSynthesizing     Phase = "synthesizing"
	PhaseCompleted        Phase = "completed"
	PhaseError            Phase = "error"
)

// Terminal reports whether p is a terminal phase.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// ErrJobNotFound is returned by [Registry.Get] for unknown job IDs.
var ErrJobNotFound = errors.New("job: not found")

// ErrNotFinished is returned by [Job.Result] while the job is still
// processing.
var ErrNotFinished = errors.New("job: not finished")

// ErrCancelled marks a job aborted by user request. The status API surfaces
// it through the error phase.
var ErrCancelled = errors.New("job: cancelled")

// Status is a point-in-time snapshot of a job, shaped for the status API.
type Status struct {
	ID        string    `json:"job_id"`
	Phase     Phase     `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is one song-processing run. All state transitions go through the
// setter methods, which are safe for concurrent use; the pipeline writes
// while status requests read.
type Job struct {
	id        uuid.UUID
	createdAt time.Time

	mu        sync.RWMutex
	phase     Phase
	progress  float64
	message   string
	err       error
	result    audio.Clip
	updatedAt time.Time
	cancel    context.CancelFunc

	done chan struct{}
}

// ID returns the job's identifier.
func (j *Job) ID() uuid.UUID { return j.id }

// Done returns a channel closed when the job reaches a terminal phase.
func (j *Job) Done() <-chan struct{} { return j.done }

// Status returns a snapshot of the job's current state.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Status{
		ID:        j.id.String(),
		Phase:     j.phase,
		Progress:  j.progress,
		Message:   j.message,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

// Result returns the finished mix. It fails with [ErrNotFinished] before the
// job completes and with the job's error after a failed run.
func (j *Job) Result() (audio.Clip, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	switch j.phase {
	case PhaseCompleted:
		return j.result, nil
	case PhaseError:
		return audio.Clip{}, j.err
	default:
		return audio.Clip{}, ErrNotFinished
	}
}

// Cancel requests the job stop. In-flight segment work finishes; no new work
// is dispatched. Cancelling a terminal job is a no-op.
func (j *Job) Cancel() {
	j.mu.RLock()
	cancel := j.cancel
	j.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// setPhase advances the job to phase with the given progress and message.
func (j *Job) setPhase(phase Phase, progress float64, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.phase = phase
	j.progress = progress
	j.message = message
	j.updatedAt = time.Now()
}

// setProgress updates progress within the current phase.
func (j *Job) setProgress(progress float64, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.progress = progress
	j.message = message
	j.updatedAt = time.Now()
}

// complete stores the result and closes the done channel.
func (j *Job) complete(result audio.Clip) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.phase = PhaseCompleted
	j.progress = 100
	j.message = "song ready for download"
	j.result = result
	j.updatedAt = time.Now()
	close(j.done)
}

// fail records err as the terminal state. No partial audio is retained.
func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return
	}
	j.phase = PhaseError
	j.err = err
	j.message = err.Error()
	j.result = audio.Clip{}
	j.updatedAt = time.Now()
	close(j.done)
}

// Registry is the in-memory job store. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[uuid.UUID]*Job)}
}

// Create registers a new queued job and returns it.
func (r *Registry) Create() *Job {
	j := &Job{
		id:        uuid.New(),
		createdAt: time.Now(),
		phase:     PhaseQueued,
		message:   "waiting for a worker",
		updatedAt: time.Now(),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()
	return j
}

// Get looks a job up by ID.
func (r *Registry) Get(id uuid.UUID) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
