package config

import (
	"context"
	"log/slog"
	"strings"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: index.base_dir", "value", s.Index.BaseDir)
	logger.InfoContext(ctx, "Config: index.batch_size", "value", s.Index.BatchSize)
	logger.InfoContext(ctx, "Config: index.lock_timeout", "value", s.Index.LockTimeout)
	logger.InfoContext(ctx, "Config: index.cache", "size", s.Index.CacheSize, "ttl", s.Index.CacheTTL)
	logger.InfoContext(ctx, "Config: index.default_page_size", "value", s.Index.DefaultPageSize)

	if s.Source.Path != "" {
		logger.InfoContext(ctx, "Config: source.path", "value", s.Source.Path)
		logger.InfoContext(ctx, "Config: source.sync_enabled", "value", s.Source.SyncEnabled)
		if s.Source.SyncEnabled {
			logger.InfoContext(ctx, "Config: source.sync_interval", "value", s.Source.SyncInterval)
		}
	}
}

// ParseLogLevel maps a configured level name to a slog level. Unknown names mean info.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("log_level", s.LogLevel),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Group("index",
			slog.String("base_dir", s.Index.BaseDir),
			slog.Int("batch_size", s.Index.BatchSize),
			slog.Duration("lock_timeout", s.Index.LockTimeout),
		),
		slog.Group("source",
			slog.String("path", s.Source.Path),
			slog.Bool("sync_enabled", s.Source.SyncEnabled),
		),
	)
}
