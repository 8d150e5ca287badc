// Package pitchshift defines the Shifter interface for duration-preserving
// pitch transformation.
//
// The contract matters more than the implementation: shifting a clip by any
// factor must leave its duration within 10ms of the input. A factor of 1.0 is
// a no-op; factors below 1 lower pitch, above 1 raise it. Implementations
// that cannot honour the duration contract should return an error and let the
// caller fall back to its resample-and-restretch path.
package pitchshift

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/chordsinger/chordsinger/pkg/audio"
)

// DurationTolerance is the maximum allowed difference between input and
// output duration for a conforming Shifter.
const DurationTolerance = 10 * time.Millisecond

// ErrDurationNotPreserved is returned (or wrapped) by shifters that detect
// they have violated the duration contract for a given input.
var ErrDurationNotPreserved = errors.New("pitchshift: output duration drifted beyond tolerance")

// Shifter transforms the perceived pitch of a clip without changing its
// length (phase-vocoder style, as opposed to plain resampling which changes
// both pitch and duration).
type Shifter interface {
	// Shift returns clip transposed by factor. The output duration must be
	// within [DurationTolerance] of the input duration.
	Shift(ctx context.Context, clip audio.Clip, factor float64) (audio.Clip, error)
}

// Resample is a dependency-free Shifter that changes pitch by playback-speed
// resampling, then restores the input length by trimming the tail (factor < 1)
// or padding silence (factor > 1). Cruder than a phase vocoder but always
// honours the duration contract; it doubles as the fallback when an external
// shifter fails.
type Resample struct{}

// Compile-time interface assertion.
var _ Shifter = Resample{}

// Shift transposes clip by factor.
func (Resample) Shift(_ context.Context, clip audio.Clip, factor float64) (audio.Clip, error) {
	if factor <= 0 {
		return audio.Clip{}, errors.New("pitchshift: non-positive pitch factor")
	}
	n := clip.Len()
	if n == 0 || factor == 1.0 {
		return clip.Clone(), nil
	}
	m := int(math.Round(float64(n) / factor))
	if m < 1 {
		m = 1
	}
	return clip.Stretched(m).FitTo(n), nil
}

// CheckDuration verifies the duration contract between an input and output
// clip, returning ErrDurationNotPreserved on violation.
func CheckDuration(in, out audio.Clip) error {
	diff := in.Duration() - out.Duration()
	if diff < 0 {
		diff = -diff
	}
	if diff >= DurationTolerance {
		return ErrDurationNotPreserved
	}
	return nil
}
