package resilience

import (
	"context"

	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker, so a Coqui server
// that keeps timing out is bypassed in favour of a healthy secondary.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text through the first healthy provider. Alphabet
// violations are rejected up front — they would fail identically on every
// backend and must not trip circuit breakers.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	if err := tts.ValidateText(text); err != nil {
		return audio.Clip{}, err
	}
	return ExecuteWithResult(f.group, func(p tts.Provider) (audio.Clip, error) {
		return p.Synthesize(ctx, text)
	})
}
