package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts":        {"coqui", "mock"},
	"pitchshift": {"rubberband", "resample", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Audio
	if cfg.Audio.SampleRate != 0 && (cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000) {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 192000]", cfg.Audio.SampleRate))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("pitchshift", cfg.Providers.PitchShift.Name)
	for _, fb := range cfg.Providers.TTSFallbacks {
		validateProviderName("tts", fb.Name)
	}

	// Provider coherence
	if cfg.Providers.TTS.Name == "coqui" && cfg.Providers.TTS.BaseURL == "" {
		errs = append(errs, errors.New("providers.tts.base_url is required for the coqui provider"))
	}
	if cfg.Providers.PitchShift.Name == "rubberband" && cfg.Providers.PitchShift.Command == "" {
		slog.Warn("providers.pitchshift.command is empty; defaulting to \"rubberband\"")
	}
	if cfg.Providers.PitchShift.Name == "" {
		slog.Warn("no pitch-shift provider configured; vocals will follow the melody via resampling only")
	}

	// Jobs
	if cfg.Jobs.Workers < 0 || cfg.Jobs.Workers > 64 {
		errs = append(errs, fmt.Errorf("jobs.workers %d is out of range [0, 64]", cfg.Jobs.Workers))
	}
	if cfg.Jobs.Timeout < 0 {
		errs = append(errs, fmt.Errorf("jobs.timeout %v must not be negative", cfg.Jobs.Timeout))
	}
	if cfg.Jobs.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("jobs.max_upload_mb %d must not be negative", cfg.Jobs.MaxUploadMB))
	}

	// Mix gains. Values far outside a studio range are almost certainly typos.
	if g := cfg.Mix.InstrumentalGainDB; g != nil && (*g < -60 || *g > 20) {
		errs = append(errs, fmt.Errorf("mix.instrumental_gain_db %.1f is out of range [-60, 20]", *g))
	}
	if g := cfg.Mix.VocalGainDB; g != nil && (*g < -60 || *g > 20) {
		errs = append(errs, fmt.Errorf("mix.vocal_gain_db %.1f is out of range [-60, 20]", *g))
	}

	// Voice
	if cfg.Voice.BaselineHz != 0 && (cfg.Voice.BaselineHz < 50 || cfg.Voice.BaselineHz > 1000) {
		errs = append(errs, fmt.Errorf("voice.baseline_hz %.1f is out of range [50, 1000]", cfg.Voice.BaselineHz))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
