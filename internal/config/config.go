// Package config provides the configuration schema, loader, file watcher, and
// provider registry for the chordsinger service.
package config

import "time"

// LogLevel controls log verbosity for the chordsinger server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for chordsinger.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Providers ProvidersConfig `yaml:"providers"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Mix       MixConfig       `yaml:"mix"`
	Voice     VoiceConfig     `yaml:"voice"`
}

// ServerConfig holds network and logging settings for the chordsinger server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AudioConfig holds the pipeline's internal audio parameters.
type AudioConfig struct {
	// SampleRate is the working sample rate for the vocal pipeline. Uploaded
	// songs and synthesised speech are resampled to this rate. Default: 22050.
	SampleRate int `yaml:"sample_rate"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named factory registered in the
// [Registry].
type ProvidersConfig struct {
	TTS        ProviderEntry `yaml:"tts"`
	PitchShift ProviderEntry `yaml:"pitchshift"`

	// TTSFallbacks lists additional TTS backends tried, in order, when the
	// primary fails or its circuit breaker is open.
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "coqui",
	// "rubberband").
	Name string `yaml:"name"`

	// BaseURL is the endpoint of a networked provider (e.g., the Coqui
	// server address). Ignored for exec-based providers.
	BaseURL string `yaml:"base_url"`

	// Command is the executable (with optional arguments) for exec-based
	// providers such as the rubberband pitch shifter.
	Command string `yaml:"command"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above (e.g., speaker_id for Coqui).
	Options map[string]any `yaml:"options"`
}

// StringOption returns the named entry from Options as a string, or the empty
// string when absent or not a string.
func (e ProviderEntry) StringOption(key string) string {
	if s, ok := e.Options[key].(string); ok {
		return s
	}
	return ""
}

// JobsConfig tunes the processing pipeline.
type JobsConfig struct {
	// Workers bounds the number of segments rendered concurrently per job.
	// Default: 4.
	Workers int `yaml:"workers"`

	// Timeout aborts a job that has been processing longer than this.
	// Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxUploadMB caps the size of an uploaded song file. Default: 64.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// MixConfig holds the final-mix gain staging. The fields are pointers so an
// explicit 0 dB (no ducking, no boost) is distinguishable from "use the
// default".
type MixConfig struct {
	// InstrumentalGainDB ducks the instrumental bed. Default: -10.
	InstrumentalGainDB *float64 `yaml:"instrumental_gain_db"`

	// VocalGainDB boosts the synthesised vocals. Default: +5.
	VocalGainDB *float64 `yaml:"vocal_gain_db"`
}

// VoiceConfig tunes the pitch mapping of the synthesised voice.
type VoiceConfig struct {
	// BaselineHz is the assumed fundamental of the unshifted TTS voice.
	// Default: 250.
	BaselineHz float64 `yaml:"baseline_hz"`

	// Effects toggles the singing-effects chain (vibrato, reverb,
	// compression). Default: true.
	Effects *bool `yaml:"effects"`
}

// EffectsEnabled resolves the Effects pointer with its default of true.
func (v VoiceConfig) EffectsEnabled() bool {
	return v.Effects == nil || *v.Effects
}
