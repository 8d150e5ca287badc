// Package filler plans the connective phrase spoken in the time gap before a
// chord change ("NOW WERE MOVING TO …", "BACK TO …").
//
// Planning is a deterministic lookup over a gap bucket and harmonic context.
// The bucket boundaries are closed-open intervals; the exact boundary
// behaviour matters because the scheduler depends on it for reproducible
// timing, so it is pinned by tests rather than left to taste.
package filler

import "github.com/chordsinger/chordsinger/internal/pronounce"

// Position locates a chord within the song.
type Position int

const (
	// Middle is any chord that is neither the first nor the last event.
	Middle Position = iota

	// First is the opening chord of the song.
	First

	// Last is the closing chord of the song.
	Last
)

// Relation describes how a chord relates to the preceding progression.
type Relation int

const (
	// Progressing means the chord is new relative to recent history.
	Progressing Relation = iota

	// Returning means the chord matches one heard two or more events back.
	Returning

	// Staying means the chord repeats the immediately preceding one.
	Staying
)

// GapContext is the input to Plan: the silent time available before the chord
// lands, and where the chord sits in the progression.
type GapContext struct {
	// GapSeconds is the time between the previous chord change and this one.
	GapSeconds float64

	Position Position
	Relation Relation
}

// Bucket classifies a gap duration. Boundary values belong to the lower
// bucket of each inequality (closed-open intervals).
type Bucket int

const (
	VeryShort Bucket = iota // gap < 0.3s
	Short                   // 0.3s ≤ gap < 1.0s
	Medium                  // 1.0s ≤ gap < 2.0s
	Long                    // gap ≥ 2.0s
)

// String returns the bucket name used in logs.
func (b Bucket) String() string {
	switch b {
	case VeryShort:
		return "very_short"
	case Short:
		return "short"
	case Medium:
		return "medium"
	case Long:
		return "long"
	default:
		return "unknown"
	}
}

// BucketFor classifies gapSeconds into its gap bucket.
func BucketFor(gapSeconds float64) Bucket {
	switch {
	case gapSeconds >= 2.0:
		return Long
	case gapSeconds >= 1.0:
		return Medium
	case gapSeconds >= 0.3:
		return Short
	default:
		return VeryShort
	}
}

// Plan returns the filler phrase for ctx, possibly empty. Every context maps
// to a defined branch; there is no failure mode.
func Plan(ctx GapContext) pronounce.Tokens {
	switch BucketFor(ctx.GapSeconds) {
	case Long:
		switch {
		case ctx.Position == First:
			return pronounce.Tokens{"WE", "START", "WITH"}
		case ctx.Position == Last:
			return pronounce.Tokens{"FINALLY", "WE", "HAVE"}
		case ctx.Relation == Returning:
			return pronounce.Tokens{"NOW", "WERE", "BACK", "TO"}
		default:
			return pronounce.Tokens{"NOW", "WERE", "MOVING", "TO"}
		}
	case Medium:
		switch ctx.Relation {
		case Returning:
			return pronounce.Tokens{"BACK", "TO"}
		case Staying:
			return pronounce.Tokens{"STAY", "ON"}
		default:
			return pronounce.Tokens{"NOW", "GO", "TO"}
		}
	case Short:
		if ctx.Relation == Returning {
			return pronounce.Tokens{"BACK", "TO"}
		}
		return pronounce.Tokens{"TO"}
	default:
		// Very short: the chord name is spoken alone.
		return nil
	}
}
