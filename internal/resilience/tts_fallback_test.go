package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chordsinger/chordsinger/pkg/provider/tts"
	ttsmock "github.com/chordsinger/chordsinger/pkg/provider/tts/mock"
)

func fastConfig() FallbackConfig {
	return FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: 50 * time.Millisecond,
		},
	}
}

func TestTTSFallback_PrimarySucceeds(t *testing.T) {
	primary := &ttsmock.Provider{}
	secondary := &ttsmock.Provider{}
	f := NewTTSFallback(primary, "primary", fastConfig())
	f.AddFallback("secondary", secondary)

	clip, err := f.Synthesize(context.Background(), "SEE MAJOR")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.Len() == 0 {
		t.Error("empty clip")
	}
	if len(secondary.Calls()) != 0 {
		t.Error("fallback called although primary succeeded")
	}
}

func TestTTSFallback_FailsOverToSecondary(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("server down")}
	secondary := &ttsmock.Provider{}
	f := NewTTSFallback(primary, "primary", fastConfig())
	f.AddFallback("secondary", secondary)

	clip, err := f.Synthesize(context.Background(), "GEE")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.Len() == 0 {
		t.Error("empty clip from fallback")
	}
	if got := secondary.Calls(); len(got) != 1 || got[0] != "GEE" {
		t.Errorf("fallback calls = %v, want [GEE]", got)
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("down")}
	secondary := &ttsmock.Provider{Err: errors.New("also down")}
	f := NewTTSFallback(primary, "primary", fastConfig())
	f.AddFallback("secondary", secondary)

	_, err := f.Synthesize(context.Background(), "SEE")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallback_InvalidTextDoesNotTouchProviders(t *testing.T) {
	primary := &ttsmock.Provider{}
	f := NewTTSFallback(primary, "primary", fastConfig())

	_, err := f.Synthesize(context.Background(), "f# minor")
	if !errors.Is(err, tts.ErrInvalidText) {
		t.Fatalf("err = %v, want ErrInvalidText", err)
	}
	if len(primary.Calls()) != 0 {
		t.Error("provider called for invalid text")
	}
}

func TestTTSFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("flapping")}
	secondary := &ttsmock.Provider{}
	f := NewTTSFallback(primary, "primary", fastConfig())
	f.AddFallback("secondary", secondary)

	// Trip the primary's breaker (MaxFailures = 2).
	for range 2 {
		if _, err := f.Synthesize(context.Background(), "SEE"); err != nil {
			t.Fatalf("Synthesize with healthy fallback: %v", err)
		}
	}
	callsBefore := len(primary.Calls())

	if _, err := f.Synthesize(context.Background(), "SEE"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := len(primary.Calls()); got != callsBefore {
		t.Errorf("primary called %d times after breaker opened, want %d", got, callsBefore)
	}
}
