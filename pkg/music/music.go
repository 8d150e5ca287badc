// Package music defines the domain types shared across the chordsinger
// pipeline: timestamped chord events from the chord detector and the melody
// contour from the f0 extractor. Both are immutable inputs owned by the
// caller for the duration of one job.
package music

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Note is a natural root note letter.
type Note byte

const (
	NoteA Note = 'A'
	NoteB Note = 'B'
	NoteC Note = 'C'
	NoteD Note = 'D'
	NoteE Note = 'E'
	NoteF Note = 'F'
	NoteG Note = 'G'
)

// IsValid reports whether n is a recognised root note.
func (n Note) IsValid() bool { return n >= 'A' && n <= 'G' }

// Accidental modifies a root note.
type Accidental int

const (
	Natural Accidental = iota
	Sharp
	Flat
)

// String returns the notation suffix for the accidental.
func (a Accidental) String() string {
	switch a {
	case Sharp:
		return "#"
	case Flat:
		return "b"
	default:
		return ""
	}
}

// Quality is the chord quality suffix, in its normalised notation form
// ("maj7", "min", "dim", …). The empty quality denotes a plain major triad.
type Quality string

// ChordEvent is a timestamped interval during which one chord is sounding.
// Events within a timeline are ordered by StartSec and non-overlapping:
// EndSec of event i is ≤ StartSec of event i+1.
type ChordEvent struct {
	// Symbol is the chord as written by the detector, e.g. "F#m7".
	Symbol string `json:"chord"`

	// Root, Acc, and Quality are the parsed components of Symbol. They are
	// derived once on decode; Symbol remains the source of truth for
	// equality comparisons.
	Root    Note       `json:"-"`
	Acc     Accidental `json:"-"`
	Quality Quality    `json:"-"`

	// StartSec and EndSec bound the interval in seconds from song start.
	StartSec float64 `json:"start_time"`
	EndSec   float64 `json:"end_time"`

	// Confidence is the detector's confidence in [0, 1]. Informational only.
	Confidence float64 `json:"confidence"`
}

// ParseSymbol fills the Root, Acc, and Quality fields from Symbol. It returns
// an error when the symbol has no root letter; the caller decides whether
// that event is dropped or spelled out as a last resort downstream.
func (e *ChordEvent) ParseSymbol() error {
	s := strings.TrimSpace(e.Symbol)
	if s == "" {
		return fmt.Errorf("music: empty chord symbol")
	}
	root := Note(s[0] &^ 0x20) // uppercase ASCII letter
	if !root.IsValid() {
		return fmt.Errorf("music: chord symbol %q has no root letter", e.Symbol)
	}
	e.Root = root
	rest := s[1:]

	e.Acc = Natural
	if rest != "" {
		switch {
		case rest[0] == '#' || strings.HasPrefix(rest, "♯"):
			e.Acc = Sharp
			rest = strings.TrimPrefix(strings.TrimPrefix(rest, "#"), "♯")
		case rest[0] == 'b' || strings.HasPrefix(rest, "♭"):
			e.Acc = Flat
			rest = strings.TrimPrefix(strings.TrimPrefix(rest, "b"), "♭")
		}
	}
	e.Quality = Quality(strings.ToLower(rest))
	return nil
}

// ValidateTimeline checks the ordering and non-overlap invariants over a
// chord event sequence.
func ValidateTimeline(events []ChordEvent) error {
	for i, e := range events {
		if e.EndSec < e.StartSec {
			return fmt.Errorf("music: event %d (%s) ends before it starts (%.3f < %.3f)", i, e.Symbol, e.EndSec, e.StartSec)
		}
		if i > 0 {
			prev := events[i-1]
			if e.StartSec < prev.StartSec {
				return fmt.Errorf("music: event %d (%s) out of order", i, e.Symbol)
			}
			if prev.EndSec > e.StartSec {
				return fmt.Errorf("music: events %d and %d overlap (%.3f > %.3f)", i-1, i, prev.EndSec, e.StartSec)
			}
		}
	}
	return nil
}

// ContourPoint is one melody frame: a timestamp and the fundamental
// frequency estimate at that instant. Voiced is false for unvoiced or silent
// frames (the extractor's null frames).
type ContourPoint struct {
	TimeSec float64 `json:"time"`
	FreqHz  float64 `json:"frequency"`
	Voiced  bool    `json:"voiced"`
}

// UnmarshalJSON decodes the extractor's wire shape, where a null frequency
// marks an unvoiced frame. The voiced flag is optional; when absent, any
// positive non-null frequency counts as voiced.
func (p *ContourPoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		TimeSec float64  `json:"time"`
		FreqHz  *float64 `json:"frequency"`
		Voiced  *bool    `json:"voiced"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.TimeSec = raw.TimeSec
	p.FreqHz = 0
	if raw.FreqHz != nil {
		p.FreqHz = *raw.FreqHz
	}
	if raw.Voiced != nil {
		p.Voiced = *raw.Voiced
	} else {
		p.Voiced = raw.FreqHz != nil && *raw.FreqHz > 0
	}
	return nil
}

// MelodyContour is an ordered, time-ascending sequence of melody frames.
// A nil contour means no melody data is available (stable, non-sung mode).
type MelodyContour []ContourPoint

// MeanVoiced returns the mean frequency of the voiced frames in [from, to).
// ok is false when the window contains no voiced frames.
func (m MelodyContour) MeanVoiced(from, to float64) (hz float64, ok bool) {
	// The contour is time-ascending, so binary-search the window start.
	i := sort.Search(len(m), func(i int) bool { return m[i].TimeSec >= from })

	var sum float64
	var n int
	for ; i < len(m) && m[i].TimeSec < to; i++ {
		if m[i].Voiced && m[i].FreqHz > 0 {
			sum += m[i].FreqHz
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
