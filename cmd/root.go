// Package cmd defines the qacrawler command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/yacht-qa-crawler/internal/config"
	"github.com/JakeFAU/yacht-qa-crawler/internal/server"
)

type ctxKey string

const (
	appKey    ctxKey = "app"
	configKey ctxKey = "config"

	// skipAppAnnotation marks commands that only need the loaded config.
	skipAppAnnotation = "qacrawler/skip-app"
)

// newApp is replaced in tests.
var newApp = server.Build

// newRootCmd returns the command tree and a cleanup that closes whatever
// application the run built. Cobra skips post-run hooks when RunE fails, so
// callers own the cleanup.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		built   *server.App
	)

	cmd := &cobra.Command{
		Use:   "qacrawler",
		Short: "Harvests yacht-insurance Q&A from the web into a reviewed knowledge base.",
		Long: `qacrawler fetches a curated set of yacht-insurance sources, extracts
question/answer candidates, gates them on quality, and publishes approved
entries. Each stage can be run on its own or behind the HTTP API.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			if cmd.Annotations[skipAppAnnotation] == "" {
				app, err := newApp(ctx, cfg)
				if err != nil {
					return fmt.Errorf("failed to initialize application services: %w", err)
				}
				built = app
				ctx = context.WithValue(ctx, appKey, app)
			}
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); QACRAWLER_* env vars override it")

	cmd.AddCommand(
		newServeCmd(),
		newSeedCmd(),
		newBatchCmd(),
		newDiscoverCmd(),
		newExtractCmd(),
		newPublishCmd(),
		newPipelineCmd(),
		newReviewCmd(),
		newImportCmd(),
		newMigrateCmd(),
	)
	cleanup := func() {
		if built != nil {
			built.Close(context.Background())
			built = nil
		}
	}
	return cmd, cleanup
}

// Execute runs the root command with a context canceled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	root, cleanup := newRootCmd()
	err := root.ExecuteContext(ctx)
	cleanup()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*server.App, error) {
	app, ok := ctx.Value(appKey).(*server.App)
	if !ok || app == nil {
		return nil, errors.New("application services not initialized")
	}
	return app, nil
}

func resolveConfig(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
