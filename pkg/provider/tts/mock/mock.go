// Package mock provides a deterministic in-memory tts.Provider for tests.
package mock

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider is a configurable tts.Provider test double. The zero value
// synthesises a 220 Hz sine tone whose duration scales with the word count,
// at 22050 Hz — deterministic and cheap.
type Provider struct {
	// Rate overrides the output sample rate. Default: 22050.
	Rate int

	// SecondsPerWord sets the synthetic speech rate. Default: 0.3.
	SecondsPerWord float64

	// Err, when non-nil, is returned by every Synthesize call.
	Err error

	// FailFirst makes the first n calls fail with Err (or a generic error)
	// before succeeding. Used to exercise retry paths.
	FailFirst int

	mu    sync.Mutex
	calls []string
	fails int
}

// Synthesize validates text and returns a sine clip sized by word count.
func (p *Provider) Synthesize(_ context.Context, text string) (audio.Clip, error) {
	if err := tts.ValidateText(text); err != nil {
		return audio.Clip{}, err
	}

	p.mu.Lock()
	p.calls = append(p.calls, text)
	shouldFail := p.Err != nil && (p.FailFirst == 0 || p.fails < p.FailFirst)
	if shouldFail {
		p.fails++
	}
	p.mu.Unlock()

	if shouldFail {
		return audio.Clip{}, p.Err
	}

	rate := p.Rate
	if rate == 0 {
		rate = 22050
	}
	spw := p.SecondsPerWord
	if spw == 0 {
		spw = 0.3
	}

	words := len(strings.Fields(text))
	n := int(float64(rate) * spw * float64(words))
	clip := audio.Clip{Samples: make([]float64, n), Rate: rate}
	for i := range clip.Samples {
		clip.Samples[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/float64(rate))
	}
	return clip, nil
}

// Calls returns the texts synthesised so far, in call order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}
