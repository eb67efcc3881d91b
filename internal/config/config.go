// Package config handles Otto configuration loading and management.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	apperrors "github.com/otto-ai/otto/internal/errors"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".otto")

	return &Config{
		Pipeline: PipelineConfig{
			GlobalConcurrency: 50,
			CallerConcurrency: 3,
			WarnUtilization:   0.9,
		},
		Classifier: ClassifierConfig{
			CacheSize:       1024,
			CacheTTLSeconds: 300,
			RemoteTimeoutMS: 2000,
			MaxRemoteChars:  2000,
		},
		Breaker: BreakerConfig{
			WindowSize:        20,
			MinSamples:        5,
			FailureThreshold:  0.5,
			RecoveryTimeoutMS: 30000,
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:  5,
			MaxWallClockMS: 30000,
			ToolTimeoutMS:  10000,
		},
		Validator: ValidatorConfig{
			MinResponseChars:     20,
			NontrivialQueryChars: 40,
		},
		Model: ModelConfig{
			Provider:  string(ProviderOpenRouter),
			Name:      "anthropic/claude-3.5-sonnet",
			BaseURL:   "https://openrouter.ai/api/v1",
			TimeoutMS: 120000,
			MaxTokens: 1024,
		},
		Memory: MemoryConfig{
			Driver:       string(DriverSQLite),
			Path:         filepath.Join(dataDir, "conversations.db"),
			ContextTurns: 10,
			TTLSeconds:   86400,
		},
		Tools: ToolsConfig{
			WorkspaceDir:   "",
			ShellTimeoutMS: 15000,
			MaxFileBytes:   256 * 1024,
			MaxOutputChars: 8000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// envOverrides are environment variables applied on top of the file config,
// so secrets and endpoints never have to live in the TOML.
type envOverrides struct {
	ModelAPIKey   string `split_words:"true"`
	ModelBaseURL  string `envconfig:"MODEL_BASE_URL"`
	ModelName     string `split_words:"true"`
	ModelProvider string `split_words:"true"`
	RedisURL      string `envconfig:"REDIS_URL"`
	LogLevel      string `split_words:"true"`
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults. OTTO_* environment variables
// override both.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// Config file doesn't exist, keep defaults
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "failed to parse config file", apperrors.CategoryUser)
	}

	var env envOverrides
	if err := envconfig.Process("otto", &env); err != nil {
		return nil, err
	}
	applyEnv(cfg, env)

	return expandPaths(cfg), nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

func applyEnv(cfg *Config, env envOverrides) {
	if env.ModelAPIKey != "" {
		cfg.Model.APIKey = env.ModelAPIKey
	}
	if env.ModelBaseURL != "" {
		cfg.Model.BaseURL = env.ModelBaseURL
	}
	if env.ModelName != "" {
		cfg.Model.Name = env.ModelName
	}
	if env.ModelProvider != "" {
		cfg.Model.Provider = env.ModelProvider
	}
	if env.RedisURL != "" {
		cfg.Memory.RedisURL = env.RedisURL
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
}

// expandPaths expands a leading ~ in configured paths.
func expandPaths(cfg *Config) *Config {
	homeDir, _ := os.UserHomeDir()

	expand := func(p string) string {
		if len(p) > 0 && p[0] == '~' {
			return filepath.Join(homeDir, p[1:])
		}
		return p
	}

	cfg.Memory.Path = expand(cfg.Memory.Path)
	cfg.Tools.WorkspaceDir = expand(cfg.Tools.WorkspaceDir)

	return cfg
}
