package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/pulox/pulox/internal/correction"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "openai-native", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"asr": {"whisper"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
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

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)

	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires a primary providers.llm"))
	}
	if len(cfg.Providers.ASRFallbacks) > 0 && cfg.Providers.ASR.Name == "" {
		errs = append(errs, errors.New("providers.asr_fallbacks requires a primary providers.asr"))
	}
	for i, entry := range cfg.Providers.LLMFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d] is missing a name", i))
			continue
		}
		validateProviderName("llm", entry.Name)
	}
	for i, entry := range cfg.Providers.ASRFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.asr_fallbacks[%d] is missing a name", i))
			continue
		}
		validateProviderName("asr", entry.Name)
	}

	if cfg.Correction.Level != "" && !correction.Level(cfg.Correction.Level).IsValid() {
		errs = append(errs, fmt.Errorf("correction.level %q is invalid; valid values: light, standard, aggressive", cfg.Correction.Level))
	}
	if cfg.Correction.LanguageHint != "" && !correction.Language(cfg.Correction.LanguageHint).IsValid() {
		errs = append(errs, fmt.Errorf("correction.language_hint %q is invalid; valid values: en, tl, mixed", cfg.Correction.LanguageHint))
	}
	if mc := cfg.Correction.MinGenerativeConfidence; mc < 0 || mc > 1 {
		errs = append(errs, fmt.Errorf("correction.min_generative_confidence %.2f is out of range [0, 1]", mc))
	}
	if cfg.Correction.BatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("correction.batch_concurrency %d must not be negative", cfg.Correction.BatchConcurrency))
	}

	if cfg.Correction.GenerativeEnabled() && cfg.Providers.LLM.Name == "" {
		slog.Warn("correction.use_generative is enabled but providers.llm is not configured; corrections will be rules-only")
	}
	if cfg.Redis.Addr == "" {
		slog.Warn("redis.addr is empty; custom lexicon overlay and result cache are disabled")
	}
	if cfg.Postgres.DSN == "" {
		slog.Warn("postgres.dsn is empty; transcript and correction history will not be persisted")
	}

	if cfg.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("breaker.max_failures %d must not be negative", cfg.Breaker.MaxFailures))
	}
	if cfg.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("breaker.reset_timeout %v must not be negative", cfg.Breaker.ResetTimeout))
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
