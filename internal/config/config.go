// Package config provides the configuration schema, loader, and LLM provider
// registry for the duskfolk NPC runtime.
package config

import "time"

// LogLevel controls log verbosity for the server.
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

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]. A zero config file yields a
// runnable system; [ApplyDefaults] fills every knob.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Store    StoreConfig    `yaml:"store"`
	World    WorldConfig    `yaml:"world"`
	Agents   AgentsConfig   `yaml:"agents"`
	Scaling  ScalingConfig  `yaml:"scaling"`
	Personas PersonasConfig `yaml:"personas"`
}

// ServerConfig holds network and logging settings for the ops HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the ops server (health, metrics) listens
	// on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LLMConfig selects and configures the cognition backend.
type LLMConfig struct {
	// Provider selects the primary backend by registry name
	// (e.g., "openai", "anthropic", "ollama").
	Provider ProviderEntry `yaml:"provider"`

	// Fallbacks lists additional backends tried, in order, when the primary
	// fails or its circuit breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// Timeout is the per-call deadline applied to every completion.
	// Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// ProviderEntry is the common configuration block for one LLM backend. The
// Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered backend (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey authenticates against the backend's API. Empty falls back to
	// the backend's conventional environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model (e.g., "gpt-4o-mini", "llama3.1").
	Model string `yaml:"model"`
}

// StoreConfig holds settings for the SQLite persistence layer.
type StoreConfig struct {
	// Path is the database file location. Default: "duskfolk.db".
	Path string `yaml:"path"`

	// PoolSize caps the connection pool. Default: 10.
	PoolSize int `yaml:"pool_size"`
}

// WorldConfig tunes the autonomous world simulator.
type WorldConfig struct {
	// TickInterval is the wall-clock spacing of world ticks. Clamped to
	// [10s, 300s]. Default: 60s.
	TickInterval time.Duration `yaml:"tick_interval"`

	// TimeScale multiplies in-world time per tick. Clamped to [0.1, 100].
	// Default: 1.0.
	TimeScale float64 `yaml:"time_scale"`

	// AutoStart launches the simulator on boot. Default: true.
	AutoStart *bool `yaml:"auto_start"`
}

// AgentsConfig tunes per-agent runtime behaviour.
type AgentsConfig struct {
	// ReflectionInterval is how often the autonomous loop distills recent
	// memories into a belief. Default: 300s.
	ReflectionInterval time.Duration `yaml:"reflection_interval"`
}

// ScalingConfig tunes the population scaling substrate.
type ScalingConfig struct {
	// CacheSize is the maximum number of cached agent contexts. Default: 5000.
	CacheSize int `yaml:"cache_size"`

	// CacheTTL is how long a cached context stays fresh. Default: 300s.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// BatchSize is the deferred-write flush threshold. Default: 100.
	BatchSize int `yaml:"batch_size"`
}

// PersonasConfig locates persona definitions.
type PersonasConfig struct {
	// Dir is a directory of persona YAML files loaded at startup. Empty
	// means no personas are preloaded; registration then requires role
	// templates or prior API-created personas.
	Dir string `yaml:"dir"`
}
