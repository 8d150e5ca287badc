// Package audio provides the in-memory audio buffer type used throughout the
// chordsinger pipeline, plus PCM conversion, resampling, and WAV codec helpers.
//
// The pipeline works internally on mono float64 sample buffers ([Clip]) so that
// DSP stages (pitch shifting, vibrato, reverb, compression) can operate without
// repeated int16 round-trips. Conversion to and from little-endian int16 PCM
// happens only at the provider and file-format boundaries.
package audio

import (
	"fmt"
	"math"
	"time"
)

// Clip is a mono audio buffer. Samples are float64 in [-1, 1]; values outside
// that range are clamped when the clip is converted to PCM.
//
// A Clip is owned by a single pipeline stage at a time and is not safe for
// concurrent mutation.
type Clip struct {
	// Samples holds the waveform, one float64 per frame.
	Samples []float64

	// Rate is the sample rate in Hz (e.g., 22050, 44100). Must be > 0.
	Rate int
}

// Silence returns a Clip of d seconds of silence at the given sample rate.
// Negative durations yield an empty clip.
func Silence(d float64, rate int) Clip {
	n := int(math.Round(d * float64(rate)))
	if n < 0 {
		n = 0
	}
	return Clip{Samples: make([]float64, n), Rate: rate}
}

// Len returns the number of sample frames in the clip.
func (c Clip) Len() int { return len(c.Samples) }

// Seconds returns the clip duration in seconds.
func (c Clip) Seconds() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// Duration returns the clip duration as a time.Duration.
func (c Clip) Duration() time.Duration {
	return time.Duration(c.Seconds() * float64(time.Second))
}

// Clone returns a deep copy of the clip.
func (c Clip) Clone() Clip {
	out := Clip{Samples: make([]float64, len(c.Samples)), Rate: c.Rate}
	copy(out.Samples, c.Samples)
	return out
}

// Overlay additively mixes src into c starting at the given frame offset.
// Samples of src that extend past the end of c are discarded; the caller is
// responsible for sizing c to cover any tail it wants to keep. Mixing is
// additive — overlapping audio sums rather than replaces.
func (c Clip) Overlay(src Clip, offset int) {
	if offset < 0 {
		// Drop the portion of src before the start of c.
		if -offset >= len(src.Samples) {
			return
		}
		src.Samples = src.Samples[-offset:]
		offset = 0
	}
	for i, s := range src.Samples {
		j := offset + i
		if j >= len(c.Samples) {
			break
		}
		c.Samples[j] += s
	}
}

// Gain applies a gain of db decibels in place. Positive values boost, negative
// values attenuate.
func (c Clip) Gain(db float64) {
	g := math.Pow(10, db/20)
	for i := range c.Samples {
		c.Samples[i] *= g
	}
}

// Clamp limits all samples to [-1, 1] in place. Call after additive mixing to
// avoid wrap-around when the result is converted to int16 PCM.
func (c Clip) Clamp() {
	for i, s := range c.Samples {
		if s > 1 {
			c.Samples[i] = 1
		} else if s < -1 {
			c.Samples[i] = -1
		}
	}
}

// FitTo trims or zero-pads the clip to exactly n frames and returns the result.
// The receiver is unchanged when its length already matches.
func (c Clip) FitTo(n int) Clip {
	if n < 0 {
		n = 0
	}
	switch {
	case len(c.Samples) == n:
		return c
	case len(c.Samples) > n:
		return Clip{Samples: c.Samples[:n], Rate: c.Rate}
	default:
		out := make([]float64, n)
		copy(out, c.Samples)
		return Clip{Samples: out, Rate: c.Rate}
	}
}

// FrameAt converts a timestamp in seconds to a frame offset within the clip's
// sample rate. Negative timestamps map to frame 0.
func (c Clip) FrameAt(sec float64) int {
	if sec < 0 {
		return 0
	}
	return int(math.Round(sec * float64(c.Rate)))
}

// Validate reports whether the clip has a usable sample rate.
func (c Clip) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", c.Rate)
	}
	return nil
}
