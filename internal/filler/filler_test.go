package filler_test

import (
	"testing"

	"github.com/chordsinger/chordsinger/internal/filler"
)

func TestPlan_Buckets(t *testing.T) {
	tests := []struct {
		name string
		ctx  filler.GapContext
		want string
	}{
		{"long first", filler.GapContext{GapSeconds: 2.5, Position: filler.First, Relation: filler.Progressing}, "WE START WITH"},
		{"long last", filler.GapContext{GapSeconds: 3.0, Position: filler.Last}, "FINALLY WE HAVE"},
		{"long returning", filler.GapContext{GapSeconds: 2.0, Relation: filler.Returning}, "NOW WERE BACK TO"},
		{"long progressing", filler.GapContext{GapSeconds: 2.0, Relation: filler.Progressing}, "NOW WERE MOVING TO"},
		{"medium returning", filler.GapContext{GapSeconds: 1.5, Relation: filler.Returning}, "BACK TO"},
		{"medium staying", filler.GapContext{GapSeconds: 1.0, Relation: filler.Staying}, "STAY ON"},
		{"medium progressing", filler.GapContext{GapSeconds: 1.2, Relation: filler.Progressing}, "NOW GO TO"},
		{"short returning", filler.GapContext{GapSeconds: 0.5, Relation: filler.Returning}, "BACK TO"},
		{"short progressing", filler.GapContext{GapSeconds: 0.5, Relation: filler.Progressing}, "TO"},
		{"very short", filler.GapContext{GapSeconds: 0.1, Relation: filler.Returning}, ""},
		{"zero gap", filler.GapContext{GapSeconds: 0, Position: filler.First}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filler.Plan(tt.ctx).String()
			if got != tt.want {
				t.Fatalf("Plan(%+v) = %q, want %q", tt.ctx, got, tt.want)
			}
		})
	}
}

// TestBucketFor_BoundariesAreClosedOpen pins the interval endpoints: each
// boundary value belongs to the upper bucket as written in the planning
// table (gap ≥ 2.0 is long, 1.0 ≤ gap < 2.0 is medium, and so on).
func TestBucketFor_BoundariesAreClosedOpen(t *testing.T) {
	tests := []struct {
		gap  float64
		want filler.Bucket
	}{
		{2.0, filler.Long},
		{1.9999, filler.Medium},
		{1.0, filler.Medium},
		{0.9999, filler.Short},
		{0.3, filler.Short},
		{0.2999, filler.VeryShort},
		{0.0, filler.VeryShort},
		{-1.0, filler.VeryShort},
	}
	for _, tt := range tests {
		if got := filler.BucketFor(tt.gap); got != tt.want {
			t.Errorf("BucketFor(%v) = %v, want %v", tt.gap, got, tt.want)
		}
	}
}

func TestPlan_AlphabetInvariant(t *testing.T) {
	for _, gap := range []float64{0, 0.5, 1.5, 2.5} {
		for pos := filler.Middle; pos <= filler.Last; pos++ {
			for rel := filler.Progressing; rel <= filler.Staying; rel++ {
				text := filler.Plan(filler.GapContext{GapSeconds: gap, Position: pos, Relation: rel}).String()
				for _, ch := range text {
					if ch != ' ' && (ch < 'A' || ch > 'Z') {
						t.Fatalf("Plan produced forbidden character %q in %q", ch, text)
					}
				}
			}
		}
	}
}
