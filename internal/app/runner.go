package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/policy-search-server/internal/config"
	mcputil "github.com/sha1n/policy-search-server/internal/mcp"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings) error
	CreateServer      func(*config.Settings) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// LoadAndValidate loads settings from flags, validates them and configures logging
func LoadAndValidate(params RunParams, flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to avoid buffering issues
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(settings.LogLevel),
	})
	slog.SetDefault(slog.New(handler))

	return settings, nil
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := LoadAndValidate(params, flags)
	if err != nil {
		return err
	}

	slog.Info("Starting policy search server", "version", version)
	config.Log(settings)

	mcpServer, cleanup, err := params.CreateServer(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, settings)
}

// CreateMCPServer creates the MCP server over the index services. When
// background sync is enabled the coordinator runs until cleanup is called.
func CreateMCPServer(settings *config.Settings) (*mcp.Server, func(), error) {
	services, err := NewServices(settings)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	if settings.Source.SyncEnabled && services.Coordinator != nil {
		// Sync runs in a background context, not tied to any request
		go func() {
			defer close(done)
			services.Coordinator.Run(ctx, settings.Source.SyncInterval)
		}()
	} else {
		close(done)
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:     "policy-search",
		Version:  "1.0.0",
		Quotes:   services.Quotes,
		Policies: services.Policies,
		Tenants:  services.TenantResolver(),
		Manifest: services.Manifest(),
	})

	cleanup := func() {
		cancel()
		<-done
		if err := services.Close(); err != nil {
			slog.Error("Failed to close services", "error", err)
		}
	}

	return server, cleanup, nil
}
