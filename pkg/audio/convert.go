package audio

import "math"

// FromPCM16 decodes little-endian int16 PCM bytes into a mono Clip. For
// stereo input (channels == 2) the L and R samples of each frame are averaged
// using int32 arithmetic to prevent overflow; higher channel counts fall back
// to taking the first channel of each frame. A trailing partial frame is
// ignored.
func FromPCM16(pcm []byte, rate, channels int) Clip {
	if channels < 1 {
		channels = 1
	}
	bytesPerFrame := 2 * channels
	frames := len(pcm) / bytesPerFrame
	out := make([]float64, frames)

	for i := range frames {
		base := i * bytesPerFrame
		switch channels {
		case 2:
			l := int32(int16(pcm[base]) | int16(pcm[base+1])<<8)
			r := int32(int16(pcm[base+2]) | int16(pcm[base+3])<<8)
			out[i] = float64(l+r) / 2 / 32768
		default:
			out[i] = float64(int16(pcm[base])|int16(pcm[base+1])<<8) / 32768
		}
	}
	return Clip{Samples: out, Rate: rate}
}

// ToPCM16 encodes the clip as little-endian int16 mono PCM. Samples outside
// [-1, 1] are clamped.
func (c Clip) ToPCM16() []byte {
	out := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// Resample converts the clip to dstRate using linear interpolation. If the
// rates already match, the clip is returned unchanged. Linear interpolation
// is adequate for speech-band material.
func (c Clip) Resample(dstRate int) Clip {
	if dstRate <= 0 || c.Rate <= 0 || c.Rate == dstRate || len(c.Samples) < 2 {
		return Clip{Samples: c.Samples, Rate: dstRate}
	}
	dstN := int(int64(len(c.Samples)) * int64(dstRate) / int64(c.Rate))
	out := c.Stretched(dstN)
	out.Rate = dstRate
	return out
}

// Stretched resamples the waveform to exactly n frames without changing the
// nominal sample rate. This is the raw "speed change" primitive — it alters
// pitch and duration by the same factor.
func (c Clip) Stretched(n int) Clip {
	if n <= 0 {
		return Clip{Samples: []float64{}, Rate: c.Rate}
	}
	if n == len(c.Samples) || len(c.Samples) == 0 {
		return c.FitTo(n)
	}
	out := make([]float64, n)
	ratio := float64(len(c.Samples)-1) / float64(max(n-1, 1))
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := c.Samples[idx]
		s1 := s0
		if idx+1 < len(c.Samples) {
			s1 = c.Samples[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return Clip{Samples: out, Rate: c.Rate}
}

// RMS returns the root-mean-square level of the clip. Used for level checks
// in tests and the readiness probe's synthesis self-test.
func (c Clip) RMS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(c.Samples)))
}
