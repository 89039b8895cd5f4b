package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sha1n/policy-search-server/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "policy-search"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Policy search MCP server",
		Long:    "Full-text search over the quote and policy indexes of every tenant, served over MCP",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Context(), cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.Flags())
	rootCmd.AddCommand(newRegenerateCommand(), newSyncCommand())
	rootCmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func runWithFlags(ctx context.Context, flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(ctx, app.DefaultRunParams(), flags, version)
}

func newRegenerateCommand() *cobra.Command {
	var tenantAlias, environment, entity string

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Rebuild one index of a tenant environment from the source database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.LoadAndValidate(app.DefaultRunParams(), cmd.Flags())
			if err != nil {
				return err
			}

			count, err := app.Regenerate(cmd.Context(), settings, tenantAlias, environment, entity)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Regenerated %s index of %s/%s with %d entities\n", entity, tenantAlias, environment, count)
			return err
		},
	}

	app.RegisterCommonFlags(cmd.Flags())
	cmd.Flags().StringVar(&tenantAlias, "tenant-alias", "", "Alias of the tenant to regenerate")
	cmd.Flags().StringVar(&environment, "environment", "", "Environment: development, staging or production")
	cmd.Flags().StringVar(&entity, "entity", "", "Entity type: quote or policy")
	_ = cmd.MarkFlagRequired("tenant-alias")
	_ = cmd.MarkFlagRequired("environment")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index every entity modified since the last sync, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.LoadAndValidate(app.DefaultRunParams(), cmd.Flags())
			if err != nil {
				return err
			}
			return app.SyncOnce(cmd.Context(), settings)
		},
	}

	app.RegisterCommonFlags(cmd.Flags())
	return cmd
}
