// Package config provides configuration types for Otto.
package config

import "time"

// Config represents the main Otto configuration.
type Config struct {
	Pipeline     PipelineConfig     `toml:"pipeline"`
	Classifier   ClassifierConfig   `toml:"classifier"`
	Breaker      BreakerConfig      `toml:"breaker"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Validator    ValidatorConfig    `toml:"validator"`
	Model        ModelConfig        `toml:"model"`
	Memory       MemoryConfig       `toml:"memory"`
	Tools        ToolsConfig        `toml:"tools"`
	Logging      LoggingConfig      `toml:"logging"`
}

// PipelineConfig bounds concurrent remote dispatch.
type PipelineConfig struct {
	GlobalConcurrency int     `toml:"global_concurrency"` // in-flight cap across all callers
	CallerConcurrency int     `toml:"caller_concurrency"` // in-flight cap per caller
	WarnUtilization   float64 `toml:"warn_utilization"`   // log a warning above this fraction of the global cap
}

// ClassifierConfig tunes intent classification.
type ClassifierConfig struct {
	CacheSize       int     `toml:"cache_size"`
	CacheTTLSeconds int     `toml:"cache_ttl_seconds"`
	RemoteTimeoutMS int     `toml:"remote_timeout_ms"` // budget for the model fallback call
	MaxRemoteChars  int     `toml:"max_remote_chars"`  // text is truncated to this before a fallback call
	MinConfidence   float64 `toml:"min_confidence"`    // heuristic matches below this defer to the model
}

// CacheTTL returns the cache TTL as a duration.
func (c ClassifierConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RemoteTimeout returns the fallback call budget as a duration.
func (c ClassifierConfig) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutMS) * time.Millisecond
}

// BreakerConfig tunes the circuit breakers guarding remote dependencies.
type BreakerConfig struct {
	WindowSize        int     `toml:"window_size"`  // rolling window of recorded outcomes
	MinSamples        int     `toml:"min_samples"`  // outcomes required before the breaker may trip
	FailureThreshold  float64 `toml:"failure_threshold"`
	RecoveryTimeoutMS int     `toml:"recovery_timeout_ms"`
}

// RecoveryTimeout returns the open-state cooldown as a duration.
func (c BreakerConfig) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutMS) * time.Millisecond
}

// OrchestratorConfig bounds the tool orchestration loop.
type OrchestratorConfig struct {
	MaxIterations  int `toml:"max_iterations"`
	MaxWallClockMS int `toml:"max_wall_clock_ms"`
	ToolTimeoutMS  int `toml:"tool_timeout_ms"`
}

// MaxWallClock returns the orchestration wall-clock budget as a duration.
func (c OrchestratorConfig) MaxWallClock() time.Duration {
	return time.Duration(c.MaxWallClockMS) * time.Millisecond
}

// ToolTimeout returns the per-tool-call budget as a duration.
func (c OrchestratorConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutMS) * time.Millisecond
}

// ValidatorConfig tunes response validation thresholds.
type ValidatorConfig struct {
	MinResponseChars     int `toml:"min_response_chars"`     // below this, a response to a non-trivial query is suspect
	NontrivialQueryChars int `toml:"nontrivial_query_chars"` // queries at least this long expect substantial answers
}

// ModelConfig configures the remote model endpoint.
type ModelConfig struct {
	Provider  string `toml:"provider"` // "openrouter" or "fantasy"
	Name      string `toml:"name"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	TimeoutMS int    `toml:"timeout_ms"`
	MaxTokens int    `toml:"max_tokens"`
}

// Timeout returns the model request budget as a duration.
func (c ModelConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// MemoryConfig configures the conversation store.
type MemoryConfig struct {
	Driver       string `toml:"driver"` // "sqlite", "redis", or "memory"
	Path         string `toml:"path"`   // sqlite database path
	RedisURL     string `toml:"redis_url"`
	ContextTurns int    `toml:"context_turns"` // turns loaded before classification
	TTLSeconds   int    `toml:"ttl_seconds"`   // redis conversation expiry
}

// TTL returns the redis conversation expiry as a duration.
func (c MemoryConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ToolsConfig configures the built-in local tools.
type ToolsConfig struct {
	WorkspaceDir   string `toml:"workspace_dir"` // root for file search/read
	ShellTimeoutMS int    `toml:"shell_timeout_ms"`
	MaxFileBytes   int64  `toml:"max_file_bytes"`
	MaxOutputChars int    `toml:"max_output_chars"`
}

// ShellTimeout returns the shell execution budget as a duration.
func (c ToolsConfig) ShellTimeout() time.Duration {
	return time.Duration(c.ShellTimeoutMS) * time.Millisecond
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// ModelProvider values accepted by ModelConfig.Provider.
type ModelProvider string

const (
	ProviderOpenRouter ModelProvider = "openrouter"
	ProviderFantasy    ModelProvider = "fantasy"
)

// MemoryDriver values accepted by MemoryConfig.Driver.
type MemoryDriver string

const (
	DriverSQLite MemoryDriver = "sqlite"
	DriverRedis  MemoryDriver = "redis"
	DriverMemory MemoryDriver = "memory"
)
