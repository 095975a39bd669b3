package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the LLM backend names the default registry knows.
// [Validate] warns (not errors) on unknown names so third-party registrations
// still work.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, validates it, and applies
// defaults. Useful in tests where configs are constructed from string
// literals. An empty reader yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found; non-fatal oddities are
// logged with slog.Warn instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// LLM backends
	validateProviderName("llm.provider", cfg.LLM.Provider.Name)
	for i, fb := range cfg.LLM.Fallbacks {
		prefix := fmt.Sprintf("llm.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		validateProviderName(prefix, fb.Name)
	}
	if cfg.LLM.Provider.Name == "" {
		slog.Warn("no LLM provider configured; agents will answer only with fallback frames")
	}
	if cfg.LLM.Timeout < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout %v must not be negative", cfg.LLM.Timeout))
	}

	// Store
	if cfg.Store.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("store.pool_size %d must not be negative", cfg.Store.PoolSize))
	}

	// World
	if cfg.World.TickInterval != 0 && (cfg.World.TickInterval < 10*time.Second || cfg.World.TickInterval > 300*time.Second) {
		slog.Warn("world.tick_interval outside [10s, 300s]; it will be clamped",
			"configured", cfg.World.TickInterval)
	}
	if cfg.World.TimeScale != 0 && (cfg.World.TimeScale < 0.1 || cfg.World.TimeScale > 100) {
		slog.Warn("world.time_scale outside [0.1, 100]; it will be clamped",
			"configured", cfg.World.TimeScale)
	}

	// Scaling
	if cfg.Scaling.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("scaling.cache_size %d must not be negative", cfg.Scaling.CacheSize))
	}
	if cfg.Scaling.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("scaling.batch_size %d must not be negative", cfg.Scaling.BatchSize))
	}

	// Personas
	if cfg.Personas.Dir != "" {
		if st, err := os.Stat(cfg.Personas.Dir); err != nil || !st.IsDir() {
			errs = append(errs, fmt.Errorf("personas.dir %q is not a readable directory", cfg.Personas.Dir))
		}
	}

	return errors.Join(errs...)
}

// ApplyDefaults fills every zero-valued knob so a minimal config file still
// yields a runnable system. Out-of-range world values are clamped here.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "duskfolk.db"
	}
	if cfg.Store.PoolSize == 0 {
		cfg.Store.PoolSize = 10
	}
	if cfg.World.TickInterval == 0 {
		cfg.World.TickInterval = 60 * time.Second
	}
	if cfg.World.TickInterval < 10*time.Second {
		cfg.World.TickInterval = 10 * time.Second
	}
	if cfg.World.TickInterval > 300*time.Second {
		cfg.World.TickInterval = 300 * time.Second
	}
	if cfg.World.TimeScale == 0 {
		cfg.World.TimeScale = 1.0
	}
	if cfg.World.TimeScale < 0.1 {
		cfg.World.TimeScale = 0.1
	}
	if cfg.World.TimeScale > 100 {
		cfg.World.TimeScale = 100
	}
	if cfg.World.AutoStart == nil {
		autoStart := true
		cfg.World.AutoStart = &autoStart
	}
	if cfg.Agents.ReflectionInterval == 0 {
		cfg.Agents.ReflectionInterval = 300 * time.Second
	}
	if cfg.Scaling.CacheSize == 0 {
		cfg.Scaling.CacheSize = 5000
	}
	if cfg.Scaling.CacheTTL == 0 {
		cfg.Scaling.CacheTTL = 300 * time.Second
	}
	if cfg.Scaling.BatchSize == 0 {
		cfg.Scaling.BatchSize = 100
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(field, name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown LLM provider name — may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}
