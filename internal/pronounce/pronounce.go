// Package pronounce converts chord symbols into speakable token sequences.
//
// The TTS engine only accepts uppercase letters and spaces, so every symbol
// character — including accidentals like '#' and '♭' — must be mapped to a
// spelled-out word before synthesis. Pronounce is a pure function: the same
// symbol always yields the same tokens.
package pronounce

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnparsableChordSymbol is returned when a symbol contains no recognisable
// root letter (A–G). Symbols with a root but unrecognised trailing text are
// never an error — the tail is spelled out letter by letter instead.
var ErrUnparsableChordSymbol = errors.New("pronounce: no recognisable root letter in chord symbol")

// Tokens is a flat sequence of uppercase word tokens representing one chord
// symbol, e.g. ["EFF", "SHARP", "MINOR", "SEVEN"]. Tokens never contain
// characters outside A–Z.
type Tokens []string

// String joins the tokens with single spaces, yielding the exact text handed
// to the TTS engine.
func (t Tokens) String() string { return strings.Join(t, " ") }

// rootSyllables maps natural root letters to their singing pronunciation.
var rootSyllables = map[byte]string{
	'A': "AYE", 'B': "BEE", 'C': "SEE", 'D': "DEE",
	'E': "EEE", 'F': "EFF", 'G': "GEE",
}

// qualities maps chord-quality suffixes to token sequences, ordered longest
// match first so that "MAJ7" wins over "MAJ" and "SUS4" over "SUS".
var qualities = []struct {
	suffix string
	tokens []string
}{
	{"MAJ7", []string{"MAJOR", "SEVEN"}},
	{"MIN7", []string{"MINOR", "SEVEN"}},
	{"MINOR", []string{"MINOR"}},
	{"MAJ", []string{"MAJOR"}},
	{"MIN", []string{"MINOR"}},
	{"AUG", []string{"AUGMENTED"}},
	{"DIM", []string{"DIMINISHED"}},
	{"SUS4", []string{"SUSPENDED", "FOUR"}},
	{"SUS2", []string{"SUSPENDED", "TWO"}},
	{"SUS", []string{"SUSPENDED"}},
	{"ADD", []string{"ADD"}},
	{"M", []string{"MINOR"}},
}

// numbers maps bare extension digits to their spoken form, longest first so
// "13" and "11" are matched before "1" would be (there is no "1" entry, but
// the ordering keeps the table honest as it grows).
var numbers = []struct {
	digits string
	word   string
}{
	{"13", "THIRTEEN"},
	{"11", "ELEVEN"},
	{"9", "NINE"},
	{"7", "SEVEN"},
	{"6", "SIX"},
	{"5", "FIVE"},
	{"4", "FOUR"},
	{"2", "TWO"},
}

// letterNames spells out individual characters for the last-resort path.
// Digits are included so garbage like "Cx9" still yields speakable output.
var letterNames = map[rune]string{
	'A': "AYE", 'B': "BEE", 'C': "SEE", 'D': "DEE", 'E': "EEE",
	'F': "EFF", 'G': "GEE", 'H': "AITCH", 'I': "EYE", 'J': "JAY",
	'K': "KAY", 'L': "ELL", 'M': "EM", 'N': "EN", 'O': "OH",
	'P': "PEE", 'Q': "CUE", 'R': "ARR", 'S': "ESS", 'T': "TEE",
	'U': "YOU", 'V': "VEE", 'W': "DOUBLEYOU", 'X': "EX", 'Y': "WHY",
	'Z': "ZEE",
	'0': "ZERO", '1': "ONE", '2': "TWO", '3': "THREE", '4': "FOUR",
	'5': "FIVE", '6': "SIX", '7': "SEVEN", '8': "EIGHT", '9': "NINE",
}

// Pronounce parses a chord symbol into root letter, optional accidental, and
// optional quality suffix, and returns the speakable token sequence. The
// accidental token is emitted after the root ("F#" → "EFF SHARP"). Trailing
// text that matches no quality or number is spelled out letter by letter
// rather than dropped, so the utterance is always complete.
//
// The only failure mode is a symbol without a root letter; in that case the
// returned error wraps [ErrUnparsableChordSymbol].
func Pronounce(symbol string) (Tokens, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrUnparsableChordSymbol)
	}

	root := s[0]
	syllable, ok := rootSyllables[root]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnparsableChordSymbol, symbol)
	}
	tokens := Tokens{syllable}
	rest := s[1:]

	// Accidental comes directly after the root. Lowercase 'b' was folded to
	// 'B' above, so a leading 'B' in the tail is ambiguous between "flat" and
	// spelled-out text; chord notation resolves it as flat, matching the
	// original symbol tables.
	if acc, n := matchAccidental(rest); n > 0 {
		tokens = append(tokens, acc)
		rest = rest[n:]
	}

	// Quality suffix, then bare extension digits, repeated so compound tails
	// like "MIN7" (already a table entry) or "SUS4" decompose fully.
	for rest != "" {
		if qt, n := matchQuality(rest); n > 0 {
			tokens = append(tokens, qt...)
			rest = rest[n:]
			continue
		}
		if word, n := matchNumber(rest); n > 0 {
			tokens = append(tokens, word)
			rest = rest[n:]
			continue
		}
		break
	}

	// Last resort: spell out whatever remains, character by character.
	for _, r := range rest {
		if name, ok := letterNames[r]; ok {
			tokens = append(tokens, name)
		}
		// Unknown punctuation ('/', '(', …) is silently dropped — there is
		// no speakable rendition and it must not reach the TTS alphabet.
	}

	return tokens, nil
}

// SpellOut renders s letter by letter ("X9" → "EX NINE"), skipping characters
// with no speakable name. It is the best-effort fallback for symbols that
// fail [Pronounce] entirely; the result may be empty but never contains a
// character outside the TTS alphabet.
func SpellOut(s string) Tokens {
	var tokens Tokens
	for _, r := range strings.ToUpper(s) {
		if name, ok := letterNames[r]; ok {
			tokens = append(tokens, name)
		}
	}
	return tokens
}

func matchAccidental(s string) (token string, n int) {
	if s == "" {
		return "", 0
	}
	switch {
	case s[0] == '#':
		return "SHARP", 1
	case strings.HasPrefix(s, "♯"):
		return "SHARP", len("♯")
	case strings.HasPrefix(s, "♭"):
		return "FLAT", len("♭")
	case s[0] == 'B':
		// Lowercase flat marker, uppercased by the caller. Only treat it as
		// an accidental when it is not the start of a quality word.
		if _, n := matchQuality(s); n == 0 {
			return "FLAT", 1
		}
	}
	return "", 0
}

func matchQuality(s string) (tokens []string, n int) {
	for _, q := range qualities {
		if strings.HasPrefix(s, q.suffix) {
			return q.tokens, len(q.suffix)
		}
	}
	return nil, 0
}

func matchNumber(s string) (word string, n int) {
	for _, num := range numbers {
		if strings.HasPrefix(s, num.digits) {
			return num.word, len(num.digits)
		}
	}
	return "", 0
}
