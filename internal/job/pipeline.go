package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/chordsinger/chordsinger/internal/assemble"
	"github.com/chordsinger/chordsinger/internal/observe"
	"github.com/chordsinger/chordsinger/internal/schedule"
	"github.com/chordsinger/chordsinger/internal/singer"
	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/music"
)

const defaultWorkers = 4

// Request carries the inputs for one processing run: the decoded song, its
// chord timeline, and an optional melody contour. All three are immutable
// for the duration of the job.
type Request struct {
	Song   audio.Clip
	Chords []music.ChordEvent
	Melody music.MelodyContour
}

// Processor runs the vocal pipeline. One Processor serves all jobs; the
// per-segment fan-out is bounded by Workers.
type Processor struct {
	// Singer renders individual segments. Required.
	Singer *singer.Singer

	// Workers bounds concurrent segment rendering. Defaults to 4. The TTS
	// engine behind the Singer must be wrapped with tts.Serialized when it
	// cannot take concurrent calls; the pool still overlaps pitch shifting
	// and effects across segments.
	Workers int

	// Timeout aborts a run that exceeds it. Zero means no limit.
	Timeout time.Duration

	// InstrumentalGainDB and VocalGainDB set the final mix staging. Nil
	// falls back to the assemble defaults; an explicit 0 dB is honoured.
	InstrumentalGainDB *float64
	VocalGainDB        *float64

	// Metrics receives pipeline instrumentation. Defaults to
	// observe.DefaultMetrics().
	Metrics *observe.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Process runs the full pipeline for req, updating j as it goes. It blocks
// until the job reaches a terminal phase; callers normally run it in a
// goroutine and poll [Job.Status].
func (p *Processor) Process(ctx context.Context, j *Job, req Request) {
	logger := p.logger().With("job_id", j.ID().String())
	metrics := p.metrics()
	start := time.Now()

	var cancel context.CancelFunc
	if p.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	j.mu.Lock()
	j.cancel = cancel
	j.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "job.process")
	defer span.End()

	metrics.ActiveJobs.Add(ctx, 1)
	defer metrics.ActiveJobs.Add(ctx, -1)

	mix, err := p.run(ctx, j, req, logger)
	metrics.JobDuration.Record(ctx, time.Since(start).Seconds())

	switch {
	case err == nil:
		j.complete(mix)
		metrics.RecordJobCompleted(ctx, "completed")
		logger.Info("job completed", "duration", time.Since(start))
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		j.fail(ErrCancelled)
		metrics.RecordJobCompleted(ctx, "cancelled")
		logger.Info("job cancelled")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		j.fail(fmt.Errorf("job: timed out during %s phase", j.Status().Phase))
		metrics.RecordJobCompleted(ctx, "timeout")
		logger.Warn("job timed out")
	default:
		j.fail(err)
		metrics.RecordJobCompleted(ctx, "error")
		logger.Error("job failed", "err", err)
	}
}

// run executes the pipeline stages and returns the final mix.
func (p *Processor) run(ctx context.Context, j *Job, req Request, logger *slog.Logger) (audio.Clip, error) {
	j.setPhase(PhasePreprocessing, 2, "validating song audio")
	if err := req.Song.Validate(); err != nil {
		return audio.Clip{}, fmt.Errorf("job: song audio: %w", err)
	}
	if req.Song.Len() == 0 {
		return audio.Clip{}, errors.New("job: song audio is empty")
	}

	j.setPhase(PhaseDetectingChords, 5, "validating chord timeline")
	if len(req.Chords) == 0 {
		return audio.Clip{}, errors.New("job: chord timeline is empty")
	}
	if err := music.ValidateTimeline(req.Chords); err != nil {
		return audio.Clip{}, fmt.Errorf("job: %w", err)
	}

	j.setPhase(PhaseExtractingMelody, 8, "validating melody contour")
	for i := 1; i < len(req.Melody); i++ {
		if req.Melody[i].TimeSec < req.Melody[i-1].TimeSec {
			return audio.Clip{}, fmt.Errorf("job: melody contour not time-ascending at frame %d", i)
		}
	}

	segments, err := p.planSegments(req.Chords, logger)
	if err != nil {
		return audio.Clip{}, err
	}

	phrases, err := p.renderSegments(ctx, j, segments, req.Melody, logger)
	if err != nil {
		return audio.Clip{}, err
	}

	j.setProgress(92, "assembling vocal track")
	assemblyStart := time.Now()
	vocals, err := assemble.VocalTrack(phrases, req.Song.Seconds(), req.Song.Rate)
	if err != nil {
		return audio.Clip{}, err
	}

	j.setProgress(96, "mixing final song")
	instGain, vocGain := p.mixGains()
	mix, err := assemble.Mix(req.Song, vocals, instGain, vocGain)
	if err != nil {
		return audio.Clip{}, err
	}
	p.metrics().AssemblyDuration.Record(ctx, time.Since(assemblyStart).Seconds())

	return mix, nil
}

// planSegments schedules the utterances, degrading gracefully on dense chord
// sequences: first without fillers, then accepting logged overlaps.
func (p *Processor) planSegments(chords []music.ChordEvent, logger *slog.Logger) ([]schedule.UtteranceSegment, error) {
	segments, err := schedule.Schedule(chords)
	if err == nil {
		return segments, nil
	}
	if !errors.Is(err, schedule.ErrScheduleOverlap) {
		return nil, err
	}

	logger.Warn("chord changes too dense for fillers, rescheduling without them", "err", err)
	segments, err = schedule.Schedule(chords, schedule.WithoutFillers())
	if err == nil {
		return segments, nil
	}
	if !errors.Is(err, schedule.ErrScheduleOverlap) {
		return nil, err
	}

	logger.Warn("chord names alone still overlap, mixing overlapping speech")
	return schedule.Schedule(chords, schedule.WithoutFillers(), schedule.WithOverlapWarnings(logger))
}

// renderSegments fans segment rendering out over a bounded worker pool.
// Results keep their segment order regardless of completion order.
func (p *Processor) renderSegments(ctx context.Context, j *Job, segments []schedule.UtteranceSegment, melody music.MelodyContour, logger *slog.Logger) ([]singer.Phrase, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	j.setPhase(PhaseSynthesizing, 10, fmt.Sprintf("rendering %d segments", len(segments)))

	var (
		sem     = semaphore.NewWeighted(int64(workers))
		phrases = make([]singer.Phrase, len(segments))
		metrics = p.metrics()

		progressMu sync.Mutex
		completed  int
	)

	g, gctx := errgroup.WithContext(ctx)

	// Cancellation gates dispatch only: a segment already handed to the
	// singer runs to completion on a detached context, never aborting a TTS
	// call mid-utterance. The per-request timeouts inside the providers
	// still bound each call.
	renderCtx := context.WithoutCancel(ctx)

	for i, seg := range segments {
		// Acquire before spawning so cancellation stops dispatch while
		// in-flight segments run to completion.
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			start := time.Now()
			ph, err := p.Singer.Sing(renderCtx, seg, melody)
			metrics.SynthesisDuration.Record(renderCtx, time.Since(start).Seconds())
			if err != nil {
				metrics.RecordSegment(renderCtx, "sung", "error")
				return fmt.Errorf("segment %d (%s): %w", seg.EventIndex, seg.Symbol, err)
			}

			mode := "spoken"
			if ph.Segment.TargetPitchHz > 0 {
				mode = "sung"
			}
			metrics.RecordSegment(renderCtx, mode, "ok")
			phrases[i] = ph

			progressMu.Lock()
			completed++
			pct := 10 + 80*float64(completed)/float64(len(segments))
			msg := fmt.Sprintf("rendered %d/%d segments", completed, len(segments))
			progressMu.Unlock()
			j.setProgress(pct, msg)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Info("all segments rendered", "count", len(segments))
	return phrases, nil
}

// mixGains resolves the configured gains against the assemble defaults.
func (p *Processor) mixGains() (inst, voc float64) {
	inst, voc = assemble.DefaultInstrumentalGainDB, assemble.DefaultVocalGainDB
	if p.InstrumentalGainDB != nil {
		inst = *p.InstrumentalGainDB
	}
	if p.VocalGainDB != nil {
		voc = *p.VocalGainDB
	}
	return inst, voc
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Processor) metrics() *observe.Metrics {
	if p.Metrics != nil {
		return p.Metrics
	}
	return observe.DefaultMetrics()
}
