// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., a local Coqui TTS
// server) and presents a uniform batch interface: one utterance in, one mono
// audio clip out. The engine alphabet is deliberately narrow — uppercase
// letters and spaces only — because the pipeline's pronunciation layer has
// already mapped every chord symbol character to a speakable word.
//
// Most neural TTS engines hold a single model context and are not safe for
// concurrent invocation; wrap such providers with [Serialized] before sharing
// them across workers.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chordsinger/chordsinger/pkg/audio"
)

// ErrInvalidText is returned when an utterance contains characters outside
// the engine alphabet [A-Z, space]. The pronunciation layer guarantees the
// alphabet, so hitting this error indicates a pipeline bug rather than bad
// user input.
var ErrInvalidText = errors.New("tts: text contains characters outside [A-Z, space]")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text — uppercase words separated by single spaces —
	// as a mono audio clip at the engine's native sample rate.
	//
	// Implementations must validate text with [ValidateText] and return
	// [ErrInvalidText] for anything outside the engine alphabet.
	Synthesize(ctx context.Context, text string) (audio.Clip, error)
}

// ValidateText reports whether text is within the engine alphabet. Empty
// text is rejected — there is nothing to synthesise.
func ValidateText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidText)
	}
	for _, r := range text {
		if r != ' ' && (r < 'A' || r > 'Z') {
			return fmt.Errorf("%w: %q", ErrInvalidText, text)
		}
	}
	return nil
}

// Serialized wraps p so that only one Synthesize call runs at a time. Use it
// when the underlying engine owns a single non-reentrant model context but
// the surrounding pipeline fans segments out across workers.
func Serialized(p Provider) Provider {
	return &serialProvider{inner: p}
}

type serialProvider struct {
	mu    sync.Mutex
	inner Provider
}

func (s *serialProvider) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Synthesize(ctx, text)
}
