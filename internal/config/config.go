package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	// ErrNotWatchable is returned by Watch when no configuration file was loaded
	ErrNotWatchable = errors.New("no configuration file in use")

	mu     sync.Mutex
	active *viper.Viper
)

var (
	validStorageBackends = []string{"memory", "file", "redis", "postgres"}
	validTones           = []string{"professional", "casual", "urgent", "reassuring", "technical"}
)

// envBindings maps config keys to extra environment variables honoured for
// compatibility with existing deployments.
var envBindings = map[string][]string{
	"generation.api_key":     {"OPENAI_API_KEY"},
	"server.allowed_origins": {"ALLOWED_ORIGINS"},
}

// overridableKeys are bound to SENTINEL_<KEY> variables. Keys that only live in
// the defaults struct are invisible to viper's AutomaticEnv, so they are listed here.
var overridableKeys = []string{
	"server.port",
	"server.allowed_origins",
	"server.trusted_proxies",
	"logging.level",
	"logging.format",
	"security.rate_limit.enabled",
	"security.rate_limit.requests_per_min",
	"security.rate_limit.burst",
	"generation.organization",
	"generation.default_tone",
	"generation.api_key",
	"generation.base_url",
	"generation.model",
	"generation.max_tokens",
	"generation.timeout",
	"incidents.dir",
	"storage.backend",
	"storage.max_updates",
	"storage.file.path",
	"storage.redis.url",
	"storage.postgres.database_url",
	"websocket.enabled",
	"websocket.username",
	"websocket.password",
	"metrics.enabled",
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/incident-sentinel/")
	v.AddConfigPath("$HOME/.incident-sentinel/")

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.Lock()
	active = v
	mu.Unlock()

	return config, nil
}

func bindEnv(v *viper.Viper) error {
	for _, key := range overridableKeys {
		names := []string{key, "SENTINEL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		names = append(names, envBindings[key]...)
		if err := v.BindEnv(names...); err != nil {
			return err
		}
	}
	return nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if _, err := config.Server.TrustedProxyNetworks(); err != nil {
		return err
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if !contains(validStorageBackends, config.Storage.Backend) {
		return fmt.Errorf("invalid storage backend: %s (must be one of %s)",
			config.Storage.Backend, strings.Join(validStorageBackends, ", "))
	}

	if config.Storage.MaxUpdates <= 0 {
		return fmt.Errorf("invalid storage.max_updates: %d (must be positive)", config.Storage.MaxUpdates)
	}

	if config.Storage.Backend == "file" && config.Storage.File.Path == "" {
		return fmt.Errorf("storage.file.path is required for the file backend")
	}

	if config.Security.RateLimit.Enabled && (config.Security.RateLimit.RequestsPerMin <= 0 || config.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests_per_min and burst")
	}

	if !contains(validTones, config.Generation.DefaultTone) {
		return fmt.Errorf("invalid generation.default_tone: %s (must be one of %s)",
			config.Generation.DefaultTone, strings.Join(validTones, ", "))
	}

	if config.Generation.MaxTokens <= 0 {
		return fmt.Errorf("invalid generation.max_tokens: %d", config.Generation.MaxTokens)
	}

	return nil
}

// Watch re-reads the configuration file on change and hands every valid
// result to callback. Invalid revisions are reported through onError and skipped.
func Watch(callback func(*Config), onError func(error)) error {
	mu.Lock()
	v := active
	mu.Unlock()

	if v == nil || v.ConfigFileUsed() == "" {
		return ErrNotWatchable
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			onError(fmt.Errorf("failed to unmarshal %s: %w", e.Name, err))
			return
		}

		if err := validateConfig(newConfig); err != nil {
			onError(fmt.Errorf("invalid configuration in %s: %w", e.Name, err))
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
