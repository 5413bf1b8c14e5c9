package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"oracle":  {"openai", "anyllm/openai", "anyllm/anthropic", "anyllm/gemini", "anyllm/ollama", "anyllm/deepseek", "anyllm/mistral", "anyllm/groq"},
	"refiner": {"openai", "anyllm/openai", "anyllm/anthropic", "anyllm/gemini", "anyllm/ollama", "anyllm/deepseek", "anyllm/mistral", "anyllm/groq"},
	"speech":  {"openai-realtime"},
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

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("oracle", cfg.Providers.Oracle.Name)
	validateProviderName("refiner", cfg.Providers.Refiner.Name)
	validateProviderName("speech", cfg.Providers.Speech.Name)

	if cfg.Providers.Oracle.Name == "" {
		slog.Warn("no oracle provider configured; comprehension and coherence stay at the neutral prior")
	}
	if cfg.Providers.Speech.Name == "" {
		slog.Warn("no speech provider configured; only text sessions will work")
	}

	// Assessment
	a := cfg.Assessment
	if a.MinUtterances < 0 {
		errs = append(errs, fmt.Errorf("assessment.min_utterances %d must not be negative", a.MinUtterances))
	}
	if a.EvalUtteranceInterval < 0 {
		errs = append(errs, fmt.Errorf("assessment.eval_utterance_interval %d must not be negative", a.EvalUtteranceInterval))
	}
	if a.EvalIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("assessment.eval_interval_seconds %d must not be negative", a.EvalIntervalSeconds))
	}
	if a.TranscriptLimit < 0 {
		errs = append(errs, fmt.Errorf("assessment.transcript_limit %d must not be negative", a.TranscriptLimit))
	}
	for name, w := range map[string]float64{
		"assessment.vocabulary_blend_weight": a.VocabularyBlendWeight,
		"assessment.grammar_blend_weight":    a.GrammarBlendWeight,
		"assessment.fluency_blend_weight":    a.FluencyBlendWeight,
	} {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", name, w))
		}
	}
	if cw := a.ComponentWeights; !cw.IsZero() {
		for name, w := range map[string]float64{
			"vocabulary":          cw.Vocabulary,
			"grammar":             cw.Grammar,
			"fluency":             cw.Fluency,
			"comprehension":       cw.Comprehension,
			"coherence":           cw.Coherence,
			"pronunciation_proxy": cw.PronunciationProxy,
		} {
			if w < 0 || w > 1 {
				errs = append(errs, fmt.Errorf("assessment.component_weights.%s %.2f is out of range [0, 1]", name, w))
			}
		}
		if sum := cw.Sum(); math.Abs(sum-1.0) > 1e-6 {
			errs = append(errs, fmt.Errorf("assessment.component_weights must sum to 1.0, got %.4f", sum))
		}
	}

	// Strategy
	s := cfg.Strategy
	if s.HysteresisCount < 0 {
		errs = append(errs, fmt.Errorf("strategy.hysteresis_count %d must not be negative", s.HysteresisCount))
	}
	if s.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("strategy.cooldown_seconds %d must not be negative", s.CooldownSeconds))
	}

	// Storage
	if cfg.Storage.PostgresDSN != "" && !strings.HasPrefix(cfg.Storage.PostgresDSN, "postgres://") &&
		!strings.HasPrefix(cfg.Storage.PostgresDSN, "postgresql://") {
		slog.Warn("storage.postgres_dsn does not look like a postgres URL", "dsn_prefix", dsnPrefix(cfg.Storage.PostgresDSN))
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

// dsnPrefix returns the scheme-ish prefix of a DSN for logging without
// leaking credentials.
func dsnPrefix(dsn string) string {
	if i := strings.Index(dsn, "://"); i > 0 {
		return dsn[:i]
	}
	if len(dsn) > 8 {
		return dsn[:8]
	}
	return dsn
}
