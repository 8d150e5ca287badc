package music_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/chordsinger/chordsinger/pkg/music"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		symbol  string
		root    music.Note
		acc     music.Accidental
		quality music.Quality
	}{
		{"C", music.NoteC, music.Natural, ""},
		{"F#m7", music.NoteF, music.Sharp, "m7"},
		{"Bb", music.NoteB, music.Flat, ""},
		{"G#dim", music.NoteG, music.Sharp, "dim"},
		{"Dmaj7", music.NoteD, music.Natural, "maj7"},
		{"a♭sus4", music.NoteA, music.Flat, "sus4"},
	}
	for _, tt := range tests {
		e := music.ChordEvent{Symbol: tt.symbol}
		if err := e.ParseSymbol(); err != nil {
			t.Errorf("ParseSymbol(%q): %v", tt.symbol, err)
			continue
		}
		if e.Root != tt.root || e.Acc != tt.acc || e.Quality != tt.quality {
			t.Errorf("ParseSymbol(%q) = (%c, %v, %q), want (%c, %v, %q)",
				tt.symbol, e.Root, e.Acc, e.Quality, tt.root, tt.acc, tt.quality)
		}
	}
}

func TestParseSymbol_NoRoot(t *testing.T) {
	for _, symbol := range []string{"", "#m", "123"} {
		e := music.ChordEvent{Symbol: symbol}
		if err := e.ParseSymbol(); err == nil {
			t.Errorf("ParseSymbol(%q): expected error", symbol)
		}
	}
}

func TestValidateTimeline(t *testing.T) {
	valid := []music.ChordEvent{
		{Symbol: "C", StartSec: 0, EndSec: 2},
		{Symbol: "G", StartSec: 2, EndSec: 3.2},
		{Symbol: "Am", StartSec: 3.2, EndSec: 3.6},
	}
	if err := music.ValidateTimeline(valid); err != nil {
		t.Fatalf("valid timeline rejected: %v", err)
	}

	overlapping := []music.ChordEvent{
		{Symbol: "C", StartSec: 0, EndSec: 2.5},
		{Symbol: "G", StartSec: 2, EndSec: 3},
	}
	if err := music.ValidateTimeline(overlapping); err == nil {
		t.Fatal("overlapping timeline accepted")
	}

	reversed := []music.ChordEvent{
		{Symbol: "C", StartSec: 2, EndSec: 1},
	}
	if err := music.ValidateTimeline(reversed); err == nil {
		t.Fatal("event ending before start accepted")
	}
}

func TestMeanVoiced(t *testing.T) {
	contour := music.MelodyContour{
		{TimeSec: 0.0, FreqHz: 220, Voiced: true},
		{TimeSec: 0.5, FreqHz: 0, Voiced: false},
		{TimeSec: 1.0, FreqHz: 440, Voiced: true},
		{TimeSec: 1.5, FreqHz: 330, Voiced: true},
		{TimeSec: 2.0, FreqHz: 550, Voiced: true},
	}

	hz, ok := contour.MeanVoiced(0.9, 2.0)
	if !ok {
		t.Fatal("expected voiced frames in window")
	}
	if math.Abs(hz-385) > 1e-9 {
		t.Fatalf("MeanVoiced = %v, want 385", hz)
	}

	// Window covering only the unvoiced frame.
	if _, ok := contour.MeanVoiced(0.4, 0.9); ok {
		t.Fatal("expected no voiced frames in unvoiced window")
	}

	// Empty contour.
	if _, ok := music.MelodyContour(nil).MeanVoiced(0, 10); ok {
		t.Fatal("expected no voiced frames in nil contour")
	}
}

func TestMelodyContour_DecodeNullFrequency(t *testing.T) {
	// Extractor output carries no voiced flag: null frequency is the
	// unvoiced marker.
	doc := `[
		{"time": 0,   "frequency": 220},
		{"time": 0.1, "frequency": 230},
		{"time": 0.2, "frequency": null}
	]`
	var m music.MelodyContour
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		t.Fatalf("decode contour: %v", err)
	}

	if !m[0].Voiced || !m[1].Voiced {
		t.Errorf("numeric-frequency frames decoded unvoiced: %+v", m[:2])
	}
	if m[2].Voiced || m[2].FreqHz != 0 {
		t.Errorf("null-frequency frame = %+v, want unvoiced at 0 Hz", m[2])
	}

	hz, ok := m.MeanVoiced(0, 0.3)
	if !ok {
		t.Fatal("MeanVoiced found no voiced frames in a voiced document")
	}
	if math.Abs(hz-225) > 1e-9 {
		t.Errorf("MeanVoiced = %v, want 225", hz)
	}
}

func TestMelodyContour_DecodeExplicitVoicedFlag(t *testing.T) {
	// An explicit flag wins over the frequency heuristic either way.
	doc := `[
		{"time": 0,   "frequency": 220, "voiced": false},
		{"time": 0.1, "frequency": 0,   "voiced": true}
	]`
	var m music.MelodyContour
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		t.Fatalf("decode contour: %v", err)
	}
	if m[0].Voiced {
		t.Error("voiced:false ignored for a numeric frequency")
	}
	if !m[1].Voiced {
		t.Error("voiced:true ignored for a zero frequency")
	}
}
