// Package singer renders scheduled utterance segments as audio and maps each
// one onto the song's melody pitch.
//
// The pipeline per segment is: synthesise the text, estimate the melody pitch
// under the utterance window, normalise it into a singable vocal octave,
// pitch-shift the speech toward it, then apply a light singing-effects chain.
// Every stage is duration-preserving: the clip that comes out is the same
// length as the raw synthesis, so the scheduler's timing math stays valid.
package singer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/chordsinger/chordsinger/internal/observe"
	"github.com/chordsinger/chordsinger/internal/schedule"
	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/music"
	"github.com/chordsinger/chordsinger/pkg/provider/pitchshift"
	"github.com/chordsinger/chordsinger/pkg/provider/tts"
)

// ErrSynthesis is returned when the TTS engine fails for a segment even after
// one retry. The job layer treats it as fatal for the whole job.
var ErrSynthesis = errors.New("singer: speech synthesis failed")

// ErrDurationInvariant is returned when neither the pitch shifter nor the
// resampling fallback could produce output matching the input duration.
var ErrDurationInvariant = errors.New("singer: pitch shift broke the duration invariant")

const (
	// baselineHz is the assumed fundamental of the unshifted TTS voice. The
	// pitch factor is the ratio of the melody target to this baseline.
	baselineHz = 250.0

	// Pitch factors outside this band make speech unintelligible, so the
	// melody target is clamped rather than followed exactly.
	minPitchFactor = 0.8
	maxPitchFactor = 1.4

	// Melody pitch is folded by octaves into this band before the factor is
	// computed, so a bass line and a soprano line land on the same voice.
	vocalLowHz  = 180.0
	vocalHighHz = 450.0
)

// Effects-chain constants. Deliberately subtle: the vocals must stay
// intelligible over the instrumental bed.
const (
	vibratoRateHz = 3.5
	vibratoDepth  = 0.01
	reverbSec     = 0.05
	reverbDecay   = 0.03
	dryMix        = 0.8
	wetMix        = 0.2
	compThreshold = 0.7
	compRatio     = 2.0
	compAmount    = 0.3
	breathAmount  = 0.015
)

// Phrase is one fully rendered utterance, ready for assembly. Segment carries
// the placement metadata with TargetPitchHz and TargetDurationSec filled in.
type Phrase struct {
	Segment schedule.UtteranceSegment
	Clip    audio.Clip
}

// Option configures a Singer.
type Option func(*Singer)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Singer) { s.logger = l }
}

// WithBaseline overrides the assumed voice fundamental in Hz, for engines
// whose default voice sits away from 250 Hz.
func WithBaseline(hz float64) Option {
	return func(s *Singer) { s.baseline = hz }
}

// WithoutEffects disables the singing-effects chain, leaving pitch-shifted
// speech untouched.
func WithoutEffects() Option {
	return func(s *Singer) { s.noEffects = true }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Singer) { s.metrics = m }
}

// Singer renders utterance segments. It is safe for concurrent use as long as
// the wrapped providers are; serialise a non-reentrant TTS engine with
// [tts.Serialized] before constructing the Singer.
type Singer struct {
	tts       tts.Provider
	shifter   pitchshift.Shifter
	logger    *slog.Logger
	metrics   *observe.Metrics
	baseline  float64
	noEffects bool
}

// New creates a Singer over the given providers.
func New(p tts.Provider, sh pitchshift.Shifter, opts ...Option) *Singer {
	s := &Singer{
		tts:      p,
		shifter:  sh,
		logger:   slog.Default(),
		metrics:  observe.DefaultMetrics(),
		baseline: baselineHz,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sing renders seg as audio. With a nil contour, or when no voiced melody
// frames fall under the utterance window, the raw synthesis is returned
// unmodified (plain spoken mode). Otherwise the clip is pitch-shifted toward
// the melody and run through the effects chain.
func (s *Singer) Sing(ctx context.Context, seg schedule.UtteranceSegment, contour music.MelodyContour) (Phrase, error) {
	clip, err := s.synthesize(ctx, seg.Text.String())
	if err != nil {
		return Phrase{}, err
	}
	seg.TargetDurationSec = clip.Seconds()

	hz, voiced := contour.MeanVoiced(seg.ScheduledStartSec, seg.ScheduledStartSec+clip.Seconds())
	if !voiced {
		return Phrase{Segment: seg, Clip: clip}, nil
	}

	target := normalizeToVocalRange(hz)
	factor := target / s.baseline
	if factor < minPitchFactor {
		factor = minPitchFactor
	} else if factor > maxPitchFactor {
		factor = maxPitchFactor
	}
	seg.TargetPitchHz = target

	shifted := clip
	if factor != 1.0 {
		shifted, err = s.shift(ctx, clip, factor)
		if err != nil {
			return Phrase{}, err
		}
	}

	if !s.noEffects {
		shifted = applySingingEffects(shifted)
	}
	return Phrase{Segment: seg, Clip: shifted}, nil
}

// synthesize calls the TTS provider, retrying once on transient failure.
// Alphabet violations are not retried: the same text fails the same way.
func (s *Singer) synthesize(ctx context.Context, text string) (audio.Clip, error) {
	clip, err := s.tts.Synthesize(ctx, text)
	if err == nil {
		return clip, nil
	}
	if errors.Is(err, tts.ErrInvalidText) || ctx.Err() != nil {
		return audio.Clip{}, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	s.logger.Warn("synthesis failed, retrying once", "text", text, "err", err)
	clip, err = s.tts.Synthesize(ctx, text)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w after retry: %v", ErrSynthesis, err)
	}
	return clip, nil
}

// shift applies the pitch shifter and verifies its duration contract, falling
// back to resample-and-repad when the shifter fails or drifts.
func (s *Singer) shift(ctx context.Context, clip audio.Clip, factor float64) (audio.Clip, error) {
	start := time.Now()
	shifted, err := s.shifter.Shift(ctx, clip, factor)
	s.metrics.PitchShiftDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil {
		err = pitchshift.CheckDuration(clip, shifted)
	}
	if err != nil {
		if ctx.Err() != nil {
			return audio.Clip{}, ctx.Err()
		}
		s.logger.Warn("pitch shifter failed, using resampling fallback", "factor", factor, "err", err)
		shifted, err = pitchshift.Resample{}.Shift(ctx, clip, factor)
		if err != nil {
			return audio.Clip{}, err
		}
	}

	if err := pitchshift.CheckDuration(clip, shifted); err != nil {
		return audio.Clip{}, fmt.Errorf("%w: factor %.3f", ErrDurationInvariant, factor)
	}
	// Tolerated drift is still drift. Trim or pad to the raw length so the
	// scheduler's timing math holds exactly.
	return shifted.FitTo(clip.Len()), nil
}

// normalizeToVocalRange folds hz by octaves into [vocalLowHz, vocalHighHz].
func normalizeToVocalRange(hz float64) float64 {
	if hz <= 0 {
		return baselineHz
	}
	for hz < vocalLowHz {
		hz *= 2
	}
	for hz > vocalHighHz {
		hz /= 2
	}
	return hz
}

// applySingingEffects runs the vibrato, reverb, breathiness, and compression
// chain. The output has exactly the input's length.
func applySingingEffects(c audio.Clip) audio.Clip {
	if c.Len() < 2 {
		return c
	}
	out := c.Clone()
	rate := float64(out.Rate)

	// Slow amplitude modulation standing in for true pitch vibrato; the
	// accumulated phase keeps the wobble centred on unity gain.
	var phase float64
	for i := range out.Samples {
		t := float64(i) / rate
		phase += math.Sin(2*math.Pi*vibratoRateHz*t) * vibratoDepth * 0.5
		out.Samples[i] *= 1 + phase*0.1
	}

	// Short exponential-decay reverb, mixed under the dry signal.
	irLen := int(reverbSec * rate)
	if irLen > 0 {
		ir := make([]float64, irLen)
		var sum float64
		for k := range ir {
			ir[k] = math.Exp(-float64(k) / (reverbDecay * rate))
			sum += ir[k]
		}
		for k := range ir {
			ir[k] /= sum
		}
		wet := make([]float64, out.Len())
		for i := range wet {
			kmax := min(i+1, irLen)
			var acc float64
			for k := 0; k < kmax; k++ {
				acc += ir[k] * out.Samples[i-k]
			}
			wet[i] = acc
		}
		for i := range out.Samples {
			out.Samples[i] = out.Samples[i]*dryMix + wet[i]*wetMix
		}
	}

	// Breathiness: low-level noise that tracks the signal envelope, so
	// silence stays silent. The noise source is a fixed-seed LCG to keep
	// renders reproducible.
	seed := uint64(0x9E3779B97F4A7C15)
	for i, x := range out.Samples {
		seed = seed*6364136223846793005 + 1442695040888963407
		noise := float64(int64(seed>>11))/(1<<52) - 1 // roughly uniform in [-1, 1)
		out.Samples[i] = x + noise*math.Abs(x)*breathAmount
	}

	// Gentle soft-knee compression to even out dynamics.
	for i, x := range out.Samples {
		a := math.Abs(x)
		if a > compThreshold {
			gr := (a - compThreshold) * (1 - 1/compRatio) * compAmount
			out.Samples[i] = x * (1 - gr)
		}
	}
	return out
}
