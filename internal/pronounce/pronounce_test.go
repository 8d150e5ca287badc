package pronounce_test

import (
	"errors"
	"testing"

	"github.com/chordsinger/chordsinger/internal/pronounce"
)

func TestPronounce_KnownSymbols(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"F#", "EFF SHARP"},
		{"Bbmin7", "BEE FLAT MINOR SEVEN"},
		{"G#dim", "GEE SHARP DIMINISHED"},
		{"C7", "SEE SEVEN"},
		{"Dmaj7", "DEE MAJOR SEVEN"},
		{"C", "SEE"},
		{"Am", "AYE MINOR"},
		{"Bm", "BEE MINOR"},
		{"Bb", "BEE FLAT"},
		{"Eaug", "EEE AUGMENTED"},
		{"Dsus4", "DEE SUSPENDED FOUR"},
		{"Asus2", "AYE SUSPENDED TWO"},
		{"Cadd9", "SEE ADD NINE"},
		{"G13", "GEE THIRTEEN"},
		{"F♯", "EFF SHARP"},
		{"A♭", "AYE FLAT"},
		{"Emin", "EEE MINOR"},
		{"Gmaj", "GEE MAJOR"},
	}
	for _, tt := range tests {
		got, err := pronounce.Pronounce(tt.symbol)
		if err != nil {
			t.Errorf("Pronounce(%q): unexpected error %v", tt.symbol, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("Pronounce(%q) = %q, want %q", tt.symbol, got.String(), tt.want)
		}
	}
}

func TestPronounce_UnrecognisedTailIsSpelledOut(t *testing.T) {
	got, err := pronounce.Pronounce("Cx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "SEE EX" {
		t.Fatalf("Pronounce(Cx) = %q, want %q", got.String(), "SEE EX")
	}
}

func TestPronounce_NoRootLetter(t *testing.T) {
	for _, symbol := range []string{"", "7", "#", "X", "?!"} {
		_, err := pronounce.Pronounce(symbol)
		if !errors.Is(err, pronounce.ErrUnparsableChordSymbol) {
			t.Errorf("Pronounce(%q): error = %v, want ErrUnparsableChordSymbol", symbol, err)
		}
	}
}

// TestPronounce_AlphabetInvariant exercises the full root × accidental ×
// quality grid and verifies the output never contains a character outside
// [A-Z, space] — the hard precondition of the TTS engine.
func TestPronounce_AlphabetInvariant(t *testing.T) {
	roots := []string{"A", "B", "C", "D", "E", "F", "G"}
	accidentals := []string{"", "#", "b", "♯", "♭"}
	qualities := []string{"", "maj", "min", "maj7", "min7", "dim", "aug", "sus4", "sus2", "add9", "7", "6", "9", "11", "13"}

	for _, r := range roots {
		for _, a := range accidentals {
			for _, q := range qualities {
				symbol := r + a + q
				tokens, err := pronounce.Pronounce(symbol)
				if err != nil {
					t.Fatalf("Pronounce(%q): %v", symbol, err)
				}
				for _, ch := range tokens.String() {
					if ch != ' ' && (ch < 'A' || ch > 'Z') {
						t.Fatalf("Pronounce(%q) produced forbidden character %q in %q", symbol, ch, tokens.String())
					}
				}
			}
		}
	}
}

func TestPronounce_Deterministic(t *testing.T) {
	a, _ := pronounce.Pronounce("F#min7")
	b, _ := pronounce.Pronounce("F#min7")
	if a.String() != b.String() {
		t.Fatalf("non-deterministic output: %q vs %q", a, b)
	}
}
