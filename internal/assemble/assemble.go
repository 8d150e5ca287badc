// Package assemble places rendered phrases on a silent timeline and mixes the
// vocal track with the instrumental bed.
package assemble

import (
	"fmt"

	"github.com/chordsinger/chordsinger/internal/singer"
	"github.com/chordsinger/chordsinger/pkg/audio"
)

// Default mix gains, in dB. The instrumental is ducked under the vocals so
// the chord names stay intelligible.
const (
	DefaultInstrumentalGainDB = -10.0
	DefaultVocalGainDB        = 5.0
)

// VocalTrack lays phrases onto a silent canvas at their scheduled onsets.
// The canvas covers at least songDurationSec; a phrase whose tail runs past
// the song end (or past the next chord change) extends the canvas rather than
// being cut. Overlapping phrases mix additively.
func VocalTrack(phrases []singer.Phrase, songDurationSec float64, rate int) (audio.Clip, error) {
	if rate <= 0 {
		return audio.Clip{}, fmt.Errorf("assemble: invalid sample rate %d", rate)
	}

	total := songDurationSec
	for _, ph := range phrases {
		if end := ph.Segment.ScheduledStartSec + ph.Clip.Seconds(); end > total {
			total = end
		}
	}

	track := audio.Silence(total, rate)
	for _, ph := range phrases {
		clip := ph.Clip
		if clip.Rate != rate {
			clip = clip.Resample(rate)
		}
		track.Overlay(clip, track.FrameAt(ph.Segment.ScheduledStartSec))
	}
	return track, nil
}

// Mix combines the instrumental bed and the vocal track into the final song:
// the instrumental is ducked by instGainDB, the vocals boosted by vocGainDB,
// then both are summed and clamped to [-1, 1]. The result is as long as the
// longer of the two inputs. Both inputs are consumed (mutated in place).
func Mix(instrumental, vocals audio.Clip, instGainDB, vocGainDB float64) (audio.Clip, error) {
	if err := instrumental.Validate(); err != nil {
		return audio.Clip{}, fmt.Errorf("assemble: instrumental: %w", err)
	}
	if err := vocals.Validate(); err != nil {
		return audio.Clip{}, fmt.Errorf("assemble: vocals: %w", err)
	}
	if vocals.Rate != instrumental.Rate {
		vocals = vocals.Resample(instrumental.Rate)
	}

	instrumental.Gain(instGainDB)
	vocals.Gain(vocGainDB)

	n := instrumental.Len()
	if vocals.Len() > n {
		n = vocals.Len()
	}
	out := instrumental.FitTo(n)
	out.Overlay(vocals, 0)
	out.Clamp()
	return out, nil
}
