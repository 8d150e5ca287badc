// Package schedule turns an ordered chord-event timeline into utterance
// segments whose chord-name onsets land exactly on the chord-change instants.
//
// The scheduler owns the timing algebra only: it estimates how long each
// filler phrase takes to speak, backs the utterance start off by that amount,
// and guarantees that segment starts never collide. Synthesis and pitch
// mapping happen downstream and may stretch an utterance's tail past the next
// chord change — that is allowed and handled by the assembler.
package schedule

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chordsinger/chordsinger/internal/filler"
	"github.com/chordsinger/chordsinger/internal/pronounce"
	"github.com/chordsinger/chordsinger/pkg/music"
)

// ErrScheduleOverlap is returned when, even after clamping, a segment would
// start before the previous segment's speech can finish. It signals a chord
// sequence too dense for spoken annotation at every gap; callers typically
// retry with [WithoutFillers] and fall back to [WithOverlapWarnings].
var ErrScheduleOverlap = errors.New("schedule: chord changes too dense for spoken annotation")

const (
	// perTokenSec is the speech-duration estimate for one uppercase word
	// token. Calibrated against the default Coqui voice at its stock rate.
	perTokenSec = 0.3

	// fillerLeadSec models the synthesis onset (initial breath and attack)
	// before the first filler word becomes audible.
	fillerLeadSec = 0.2

	// overlapEps absorbs float rounding when comparing segment boundaries.
	overlapEps = 1e-9
)

// UtteranceSegment is one scheduled utterance: an optional filler phrase
// followed by the chord-name tokens. Created here, consumed by the pitch
// mapper, destroyed after assembly.
type UtteranceSegment struct {
	// EventIndex is the position of the owning chord event in the timeline.
	EventIndex int

	// Symbol is the chord symbol this utterance announces.
	Symbol string

	// Text is the full token sequence handed to the TTS engine: filler
	// tokens first, then the chord name.
	Text pronounce.Tokens

	// FillerTokens counts how many leading tokens of Text are filler. Zero
	// means the chord name is spoken alone.
	FillerTokens int

	// ScheduledStartSec is the absolute utterance onset. It is chosen so
	// that the chord-name token — not the filler — lands on EventStartSec.
	ScheduledStartSec float64

	// EventStartSec is the chord-change instant the chord name must hit.
	EventStartSec float64

	// GapSeconds is the time between the previous chord change and this one.
	GapSeconds float64

	// TargetDurationSec and TargetPitchHz are unset (zero) here; the pitch
	// mapper populates them during synthesis.
	TargetDurationSec float64
	TargetPitchHz     float64
}

// FillerSeconds returns the estimated spoken duration of the segment's filler
// prefix, zero when there is none.
func (s UtteranceSegment) FillerSeconds() float64 {
	return EstimateFiller(s.Text[:s.FillerTokens])
}

// EstimateSpeech estimates the spoken duration of a token sequence using the
// fixed per-token heuristic.
func EstimateSpeech(tokens pronounce.Tokens) float64 {
	return perTokenSec * float64(len(tokens))
}

// EstimateFiller estimates the wall-clock cost of a filler prefix: onset lead
// plus per-token speech time. Empty fillers cost nothing.
func EstimateFiller(tokens pronounce.Tokens) float64 {
	if len(tokens) == 0 {
		return 0
	}
	return fillerLeadSec + EstimateSpeech(tokens)
}

// Option configures a [Schedule] run.
type Option func(*scheduler)

// WithoutFillers disables filler planning entirely — every chord name is
// spoken alone at its chord-change instant. This is the job-wide recovery
// path for [ErrScheduleOverlap].
func WithoutFillers() Option {
	return func(s *scheduler) { s.noFillers = true }
}

// WithOverlapWarnings downgrades [ErrScheduleOverlap] to a logged warning per
// colliding segment. The schedule is still produced; overlapping speech tails
// are mixed additively by the assembler. Use only after a no-filler pass has
// already failed — the overlap is then inherent to the chord density.
func WithOverlapWarnings(logger *slog.Logger) Option {
	return func(s *scheduler) { s.warnLogger = logger }
}

type scheduler struct {
	noFillers  bool
	warnLogger *slog.Logger
}

// Schedule computes one UtteranceSegment per chord event. The input timeline
// must satisfy the ordering invariants checked by [music.ValidateTimeline].
//
// Events whose symbol cannot be parsed at all are not dropped: their text
// falls back to a letter-by-letter spell-out of the raw symbol.
func Schedule(events []music.ChordEvent, opts ...Option) ([]UtteranceSegment, error) {
	var cfg scheduler
	for _, o := range opts {
		o(&cfg)
	}

	if err := music.ValidateTimeline(events); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	segments := make([]UtteranceSegment, 0, len(events))
	for i, ev := range events {
		name, err := pronounce.Pronounce(ev.Symbol)
		if err != nil {
			// Best effort: spell the raw symbol out rather than abort the job.
			name = pronounce.SpellOut(ev.Symbol)
			if cfg.warnLogger != nil {
				cfg.warnLogger.Warn("unparsable chord symbol, spelling out",
					"symbol", ev.Symbol, "event", i, "err", err)
			}
		}

		gap := 0.0
		if i > 0 {
			gap = ev.StartSec - events[i-1].StartSec
		}

		var fill pronounce.Tokens
		if !cfg.noFillers {
			fill = filler.Plan(filler.GapContext{
				GapSeconds: gap,
				Position:   positionOf(i, len(events)),
				Relation:   relationOf(events, i),
			})
			// Fillers are atomic: dropped whole when they cannot fit the
			// gap, never truncated mid-word.
			if EstimateFiller(fill) > gap {
				fill = nil
			}
		}

		start := ev.StartSec - EstimateFiller(fill)
		if i > 0 && start < events[i-1].StartSec {
			start = events[i-1].StartSec
		}
		if start < 0 {
			start = 0
		}

		seg := UtteranceSegment{
			EventIndex:        i,
			Symbol:            ev.Symbol,
			Text:              append(append(pronounce.Tokens{}, fill...), name...),
			FillerTokens:      len(fill),
			ScheduledStartSec: start,
			EventStartSec:     ev.StartSec,
			GapSeconds:        gap,
		}

		if len(segments) > 0 {
			prev := segments[len(segments)-1]
			requiredEnd := prev.ScheduledStartSec + EstimateSpeech(prev.Text)
			if seg.ScheduledStartSec+overlapEps < requiredEnd {
				if cfg.warnLogger == nil {
					return nil, fmt.Errorf("%w: event %d (%s) at %.3fs starts before previous speech ends at %.3fs",
						ErrScheduleOverlap, i, ev.Symbol, seg.ScheduledStartSec, requiredEnd)
				}
				cfg.warnLogger.Warn("segment overlaps previous speech, audio will mix",
					"event", i,
					"symbol", ev.Symbol,
					"start_sec", seg.ScheduledStartSec,
					"previous_end_sec", requiredEnd)
			}
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// positionOf classifies event i within a timeline of n events.
func positionOf(i, n int) filler.Position {
	switch {
	case i == 0:
		return filler.First
	case i == n-1:
		return filler.Last
	default:
		return filler.Middle
	}
}

// relationOf scans backward through prior events for a symbol match. It is a
// pure function of the event index: staying when the immediate predecessor
// matches, returning when any earlier event matches, progressing otherwise.
func relationOf(events []music.ChordEvent, i int) filler.Relation {
	if i == 0 {
		return filler.Progressing
	}
	if events[i-1].Symbol == events[i].Symbol {
		return filler.Staying
	}
	for j := i - 2; j >= 0; j-- {
		if events[j].Symbol == events[i].Symbol {
			return filler.Returning
		}
	}
	return filler.Progressing
}
