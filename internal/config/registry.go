package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chordsinger/chordsinger/pkg/provider/pitchshift"
	"github.com/chordsinger/chordsinger/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	tts        map[string]func(ProviderEntry) (tts.Provider, error)
	pitchshift map[string]func(ProviderEntry) (pitchshift.Shifter, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tts:        make(map[string]func(ProviderEntry) (tts.Provider, error)),
		pitchshift: make(map[string]func(ProviderEntry) (pitchshift.Shifter, error)),
	}
}

// RegisterTTS registers a TTS provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterPitchShift registers a pitch-shifter factory under name.
func (r *Registry) RegisterPitchShift(name string, factory func(ProviderEntry) (pitchshift.Shifter, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pitchshift[name] = factory
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreatePitchShift instantiates a pitch shifter using the factory registered
// under entry.Name.
func (r *Registry) CreatePitchShift(entry ProviderEntry) (pitchshift.Shifter, error) {
	r.mu.RLock()
	factory, ok := r.pitchshift[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: pitchshift/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
