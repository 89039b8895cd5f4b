package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	RegisterCommonFlags(flags)
}

// RegisterCommonFlags registers the logging, index and source flags shared by every command
func RegisterCommonFlags(flags *pflag.FlagSet) {
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")
	flags.String("index-base-dir", "", "Root directory of the Live and Regeneration index trees")
	flags.Int("index-batch-size", 0, "Documents buffered before an index writer flushes")
	flags.Duration("index-lock-timeout", 0, "How long a writer waits for an index write lock")
	flags.Duration("index-cache-ttl", 0, "Lifetime of cached last-updated timestamps")
	flags.Int("index-cache-size", 0, "Maximum number of cached last-updated timestamps")
	flags.Int("index-default-page-size", 0, "Page size used when a search does not set one")
	flags.String("source-path", "", "SQLite database holding tenants, quotes and policies")
	flags.Bool("source-sync-enabled", false, "Sync indexes from the source database in the background")
	flags.Duration("source-sync-interval", 0, "Interval between background syncs")
}
