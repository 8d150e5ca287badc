// Package coqui provides a tts.Provider backed by a standard Coqui TTS
// server (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts
// with URL query parameters; the server responds with a complete WAV body.
//
// The server holds one model context and processes requests sequentially, so
// callers sharing a Provider across goroutines should wrap it with
// [tts.Serialized].
//
// Typical usage:
//
//	p := coqui.New("http://localhost:5002",
//	    coqui.WithSpeaker("p225"),
//	    coqui.WithTimeout(15*time.Second),
//	)
//	clip, err := p.Synthesize(ctx, "NOW GO TO AYE MINOR")
package coqui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultTimeout = 30 * time.Second
	ttsEndpoint    = "/api/tts"

	// maxResponseBytes bounds the WAV body read from the server. A minute of
	// 48kHz mono 16-bit PCM is under 6 MiB; 32 MiB leaves generous headroom.
	maxResponseBytes = 32 << 20
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSpeaker sets the speaker_id query parameter for multi-speaker models.
func WithSpeaker(id string) Option {
	return func(p *Provider) { p.speakerID = id }
}

// WithLanguage sets the language_id query parameter for multilingual models.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.languageID = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithOutputRate resamples synthesised audio to the given rate. When 0
// (default) clips are returned at the model's native rate.
func WithOutputRate(rate int) Option {
	return func(p *Provider) { p.outputRate = rate }
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to inject a
// test transport.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider talks to a standard Coqui TTS server.
type Provider struct {
	baseURL    string
	speakerID  string
	languageID string
	outputRate int
	httpClient *http.Client
}

// New creates a Provider targeting the Coqui server at baseURL.
func New(baseURL string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize renders text through the Coqui server and returns the decoded
// mono clip.
func (p *Provider) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	if err := tts.ValidateText(text); err != nil {
		return audio.Clip{}, err
	}

	q := url.Values{}
	q.Set("text", text)
	if p.speakerID != "" {
		q.Set("speaker_id", p.speakerID)
	}
	if p.languageID != "" {
		q.Set("language_id", p.languageID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+ttsEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return audio.Clip{}, fmt.Errorf("coqui: server returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	wavBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: read response: %w", err)
	}

	clip, err := audio.DecodeWAV(bytes.NewReader(wavBytes))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: %w", err)
	}
	if p.outputRate > 0 && clip.Rate != p.outputRate {
		clip = clip.Resample(p.outputRate)
	}
	return clip, nil
}

// Healthy probes the server root and reports whether it responds. Used by
// the readiness endpoint.
func (p *Provider) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coqui: server unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("coqui: server unhealthy: %s", resp.Status)
	}
	return nil
}
