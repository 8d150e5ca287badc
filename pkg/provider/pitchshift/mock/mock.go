// Package mock provides a configurable pitchshift.Shifter test double.
package mock

import (
	"context"
	"sync"

	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/provider/pitchshift"
)

// Compile-time interface assertion.
var _ pitchshift.Shifter = (*Shifter)(nil)

// Shifter is a pitchshift.Shifter test double. The zero value behaves as a
// perfect duration-preserving shifter: it returns a copy of the input clip
// with every sample attenuated slightly so callers can tell output from
// input.
type Shifter struct {
	// Err, when non-nil, is returned by every Shift call.
	Err error

	// DriftSeconds, when non-zero, lengthens (positive) or shortens
	// (negative) the output by that many seconds. Used to exercise the
	// duration-contract fallback in callers.
	DriftSeconds float64

	mu      sync.Mutex
	factors []float64
}

// Shift records factor and returns a same-length transformed copy of clip,
// subject to the configured Err and DriftSeconds.
func (s *Shifter) Shift(_ context.Context, clip audio.Clip, factor float64) (audio.Clip, error) {
	s.mu.Lock()
	s.factors = append(s.factors, factor)
	s.mu.Unlock()

	if s.Err != nil {
		return audio.Clip{}, s.Err
	}

	out := clip.Clone()
	for i := range out.Samples {
		out.Samples[i] *= 0.9
	}
	if s.DriftSeconds != 0 {
		out = out.FitTo(out.Len() + int(s.DriftSeconds*float64(out.Rate)))
	}
	return out, nil
}

// Factors returns the pitch factors passed to Shift so far, in call order.
func (s *Shifter) Factors() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.factors))
	copy(out, s.factors)
	return out
}
