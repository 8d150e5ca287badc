package assemble_test

import (
	"math"
	"testing"

	"github.com/chordsinger/chordsinger/internal/assemble"
	"github.com/chordsinger/chordsinger/internal/schedule"
	"github.com/chordsinger/chordsinger/internal/singer"
	"github.com/chordsinger/chordsinger/pkg/audio"
)

const rate = 22050

func constantClip(seconds, value float64) audio.Clip {
	c := audio.Silence(seconds, rate)
	for i := range c.Samples {
		c.Samples[i] = value
	}
	return c
}

func phraseAt(start float64, clip audio.Clip) singer.Phrase {
	return singer.Phrase{
		Segment: schedule.UtteranceSegment{ScheduledStartSec: start},
		Clip:    clip,
	}
}

func TestVocalTrack_PlacesPhraseAtScheduledOnset(t *testing.T) {
	track, err := assemble.VocalTrack(
		[]singer.Phrase{phraseAt(1.0, constantClip(0.1, 0.5))}, 2.0, rate)
	if err != nil {
		t.Fatalf("VocalTrack: %v", err)
	}

	onset := track.FrameAt(1.0)
	if track.Samples[onset] != 0.5 {
		t.Errorf("sample at onset = %v, want 0.5", track.Samples[onset])
	}
	if track.Samples[onset-1] != 0 {
		t.Errorf("sample before onset = %v, want silence", track.Samples[onset-1])
	}
	if got := track.Seconds(); math.Abs(got-2.0) > 1e-6 {
		t.Errorf("track duration = %v, want 2.0", got)
	}
}

func TestVocalTrack_TailExtendsCanvas(t *testing.T) {
	track, err := assemble.VocalTrack(
		[]singer.Phrase{phraseAt(1.95, constantClip(0.2, 0.5))}, 2.0, rate)
	if err != nil {
		t.Fatalf("VocalTrack: %v", err)
	}
	if got := track.Seconds(); math.Abs(got-2.15) > 1e-3 {
		t.Errorf("track duration = %v, want 2.15 (tail kept)", got)
	}
	last := track.Samples[track.Len()-1]
	if last != 0.5 {
		t.Errorf("tail sample = %v, want 0.5", last)
	}
}

func TestVocalTrack_OverlappingPhrasesSum(t *testing.T) {
	clip := constantClip(0.1, 0.5)
	track, err := assemble.VocalTrack(
		[]singer.Phrase{phraseAt(0.5, clip), phraseAt(0.5, clip.Clone())}, 1.0, rate)
	if err != nil {
		t.Fatalf("VocalTrack: %v", err)
	}
	if got := track.Samples[track.FrameAt(0.55)]; got != 1.0 {
		t.Errorf("overlapped sample = %v, want 1.0 (additive mix)", got)
	}
}

func TestVocalTrack_RejectsBadRate(t *testing.T) {
	if _, err := assemble.VocalTrack(nil, 1.0, 0); err == nil {
		t.Fatal("expected error for rate 0")
	}
}

func TestMix_GainsAndSums(t *testing.T) {
	inst := constantClip(0.5, 1.0)
	voc := constantClip(0.5, 0.1)

	out, err := assemble.Mix(inst, voc, assemble.DefaultInstrumentalGainDB, assemble.DefaultVocalGainDB)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}

	// -10dB on 1.0 ≈ 0.3162; +5dB on 0.1 ≈ 0.1778.
	want := math.Pow(10, -10.0/20) + 0.1*math.Pow(10, 5.0/20)
	if got := out.Samples[100]; math.Abs(got-want) > 1e-9 {
		t.Errorf("mixed sample = %v, want %v", got, want)
	}
}

func TestMix_ClampsHotSignal(t *testing.T) {
	out, err := assemble.Mix(constantClip(0.1, 1.0), constantClip(0.1, 1.0),
		assemble.DefaultInstrumentalGainDB, assemble.DefaultVocalGainDB)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	for i, s := range out.Samples {
		if s > 1.0 || s < -1.0 {
			t.Fatalf("sample %d = %v outside [-1, 1]", i, s)
		}
	}
	if out.Samples[50] != 1.0 {
		t.Errorf("hot sample = %v, want clamped to 1.0", out.Samples[50])
	}
}

func TestMix_KeepsLongerInput(t *testing.T) {
	out, err := assemble.Mix(constantClip(0.5, 0.2), constantClip(1.0, 0.2),
		assemble.DefaultInstrumentalGainDB, assemble.DefaultVocalGainDB)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if got := out.Seconds(); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("mix duration = %v, want 1.0 (longer input)", got)
	}
}
