package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// IndexSettings configuration for the on-disk search indexes
type IndexSettings struct {
	BaseDir         string        `mapstructure:"base_dir"`
	BatchSize       int           `mapstructure:"batch_size"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheSize       int           `mapstructure:"cache_size"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
}

// SourceSettings configuration for the entity source database
type SourceSettings struct {
	Path         string        `mapstructure:"path"`
	SyncEnabled  bool          `mapstructure:"sync_enabled"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// Settings application settings
type Settings struct {
	Transport string         `mapstructure:"transport"`
	Host      string         `mapstructure:"host"`
	Port      int            `mapstructure:"port"`
	LogLevel  string         `mapstructure:"log_level"`
	Auth      AuthSettings   `mapstructure:"auth"`
	Index     IndexSettings  `mapstructure:"index"`
	Source    SourceSettings `mapstructure:"source"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("log_level", "info")

	// Index defaults
	v.SetDefault("index.base_dir", defaultIndexBaseDir())
	v.SetDefault("index.batch_size", 100)
	v.SetDefault("index.lock_timeout", 30*time.Second)
	v.SetDefault("index.cache_ttl", 5*time.Minute)
	v.SetDefault("index.cache_size", 1024)
	v.SetDefault("index.default_page_size", 100)

	// Source defaults
	v.SetDefault("source.path", "")
	v.SetDefault("source.sync_enabled", false)
	v.SetDefault("source.sync_interval", 5*time.Minute)

	// Environment variables
	v.SetEnvPrefix("POLICY_SEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("auth.type", "POLICY_SEARCH_AUTH_TYPE")
	_ = v.BindEnv("auth.basic.username", "POLICY_SEARCH_AUTH_BASIC_USERNAME")
	_ = v.BindEnv("auth.basic.password", "POLICY_SEARCH_AUTH_BASIC_PASSWORD")
	_ = v.BindEnv("auth.api_keys", "POLICY_SEARCH_AUTH_API_KEYS")

	_ = v.BindEnv("log_level", "POLICY_SEARCH_LOG_LEVEL")

	// Index env var bindings
	_ = v.BindEnv("index.base_dir", "POLICY_SEARCH_INDEX_BASE_DIR")
	_ = v.BindEnv("index.batch_size", "POLICY_SEARCH_INDEX_BATCH_SIZE")
	_ = v.BindEnv("index.lock_timeout", "POLICY_SEARCH_INDEX_LOCK_TIMEOUT")
	_ = v.BindEnv("index.cache_ttl", "POLICY_SEARCH_INDEX_CACHE_TTL")
	_ = v.BindEnv("index.cache_size", "POLICY_SEARCH_INDEX_CACHE_SIZE")
	_ = v.BindEnv("index.default_page_size", "POLICY_SEARCH_INDEX_DEFAULT_PAGE_SIZE")

	// Source env var bindings
	_ = v.BindEnv("source.path", "POLICY_SEARCH_SOURCE_PATH")
	_ = v.BindEnv("source.sync_enabled", "POLICY_SEARCH_SOURCE_SYNC_ENABLED")
	_ = v.BindEnv("source.sync_interval", "POLICY_SEARCH_SOURCE_SYNC_INTERVAL")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("transport", flags.Lookup("transport"))
		_ = v.BindPFlag("host", flags.Lookup("host"))
		_ = v.BindPFlag("port", flags.Lookup("port"))
		_ = v.BindPFlag("auth.type", flags.Lookup("auth-type"))
		_ = v.BindPFlag("auth.basic.username", flags.Lookup("auth-basic-username"))
		_ = v.BindPFlag("auth.basic.password", flags.Lookup("auth-basic-password"))
		_ = v.BindPFlag("auth.api_keys", flags.Lookup("auth-api-keys"))

		_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

		// Index CLI flags
		_ = v.BindPFlag("index.base_dir", flags.Lookup("index-base-dir"))
		_ = v.BindPFlag("index.batch_size", flags.Lookup("index-batch-size"))
		_ = v.BindPFlag("index.lock_timeout", flags.Lookup("index-lock-timeout"))
		_ = v.BindPFlag("index.cache_ttl", flags.Lookup("index-cache-ttl"))
		_ = v.BindPFlag("index.cache_size", flags.Lookup("index-cache-size"))
		_ = v.BindPFlag("index.default_page_size", flags.Lookup("index-default-page-size"))

		// Source CLI flags
		_ = v.BindPFlag("source.path", flags.Lookup("source-path"))
		_ = v.BindPFlag("source.sync_enabled", flags.Lookup("source-sync-enabled"))
		_ = v.BindPFlag("source.sync_interval", flags.Lookup("source-sync-interval"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv("POLICY_SEARCH_AUTH_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys and drop empty ones
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	// Expand home directory in paths
	settings.Index.BaseDir = expandHomeDir(settings.Index.BaseDir)
	settings.Source.Path = expandHomeDir(settings.Source.Path)

	return &settings, nil
}

// defaultIndexBaseDir returns the default base directory for indexes
func defaultIndexBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".policy-search", "indexes")
	}
	return filepath.Join(home, ".policy-search", "indexes")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	switch strings.ToLower(s.LogLevel) {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return errors.New("log-level must be one of debug, info, warn or error, got: " + s.LogLevel)
	}

	if err := validateIndexSettings(&s.Index); err != nil {
		return err
	}

	return validateSourceSettings(&s.Source)
}

// validateIndexSettings validates the index configuration
func validateIndexSettings(i *IndexSettings) error {
	if i.BaseDir == "" {
		return errors.New("index-base-dir cannot be empty")
	}

	if i.BatchSize <= 0 {
		return errors.New("index-batch-size must be positive")
	}

	if i.LockTimeout <= 0 {
		return errors.New("index-lock-timeout must be positive")
	}

	if i.CacheTTL <= 0 {
		return errors.New("index-cache-ttl must be positive")
	}

	if i.CacheSize <= 0 {
		return errors.New("index-cache-size must be positive")
	}

	if i.DefaultPageSize <= 0 {
		return errors.New("index-default-page-size must be positive")
	}

	return nil
}

// validateSourceSettings validates the entity source configuration
func validateSourceSettings(src *SourceSettings) error {
	if !src.SyncEnabled {
		return nil // No validation needed when sync is off
	}

	if src.Path == "" {
		return errors.New("source-sync-enabled requires a source database (source-path)")
	}

	if src.SyncInterval <= 0 {
		return errors.New("source-sync-interval must be positive")
	}

	return nil
}
