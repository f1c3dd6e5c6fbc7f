package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CorrectionChanged is true when the default correction behaviour
	// (level, passes, threshold, batch concurrency) changed.
	CorrectionChanged bool
	NewCorrection     CorrectionConfig

	// BreakerChanged is true when the circuit-breaker tuning changed.
	BreakerChanged bool
	NewBreaker     BreakerConfig
}

// Empty reports whether the diff carries no hot-reloadable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.CorrectionChanged && !d.BreakerChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !correctionEqual(old.Correction, new.Correction) {
		d.CorrectionChanged = true
		d.NewCorrection = new.Correction
	}

	if old.Breaker != new.Breaker {
		d.BreakerChanged = true
		d.NewBreaker = new.Breaker
	}

	return d
}

// correctionEqual compares two correction configs, treating the tri-state
// bool pointers by effective value.
func correctionEqual(a, b CorrectionConfig) bool {
	return a.Level == b.Level &&
		a.RulesEnabled() == b.RulesEnabled() &&
		a.GenerativeEnabled() == b.GenerativeEnabled() &&
		a.LanguageHint == b.LanguageHint &&
		a.MinGenerativeConfidence == b.MinGenerativeConfidence &&
		a.BatchConcurrency == b.BatchConcurrency
}
