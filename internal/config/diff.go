package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// server changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MixChanged is true when the final-mix gain staging changed. New jobs
	// pick up the new gains; in-flight jobs finish with the old ones.
	MixChanged bool
	NewMix     MixConfig

	// VoiceChanged is true when the pitch-mapping tuning changed.
	VoiceChanged bool
	NewVoice     VoiceConfig
}

// Any reports whether the diff contains at least one hot-reloadable change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.MixChanged || d.VoiceChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !mixEqual(old.Mix, new.Mix) {
		d.MixChanged = true
		d.NewMix = new.Mix
	}

	if !voiceEqual(old.Voice, new.Voice) {
		d.VoiceChanged = true
		d.NewVoice = new.Voice
	}

	return d
}

// voiceEqual compares VoiceConfig values, resolving the Effects pointer.
func voiceEqual(a, b VoiceConfig) bool {
	return a.BaselineHz == b.BaselineHz && a.EffectsEnabled() == b.EffectsEnabled()
}

// mixEqual compares MixConfig values, resolving the gain pointers.
func mixEqual(a, b MixConfig) bool {
	return gainEqual(a.InstrumentalGainDB, b.InstrumentalGainDB) &&
		gainEqual(a.VocalGainDB, b.VocalGainDB)
}

func gainEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
