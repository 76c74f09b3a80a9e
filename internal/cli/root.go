package cli

import (
	"context"
	"fmt"

	"resumesense/internal/config"
	"resumesense/internal/errors"
	"resumesense/internal/view"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootFlags struct {
	configFile string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "resumesense",
	Short: "Resume analysis front end",
	Long: `Resumesense submits resumes to a resume analysis service and renders
the scores and insights it returns. It runs as a web server with an upload
form, or as a command-line tool producing html, json, text or markdown.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
}

// Execute runs the root command with ctx as the base context
func Execute(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// loadRuntime loads configuration and the logger and attaches both to the
// command's context, making them available to all subcommands.
func loadRuntime(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	cfg, err := config.LoadConfig(rootFlags.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.App.LogLevel
	if rootFlags.logLevel != "" {
		level = rootFlags.logLevel
	}
	logger, err := errors.New(level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return err
	}

	logger.Info("Starting resumesense",
		"version", Version,
		"command", cmd.Name(),
		"log_level", level,
		"upstream", cfg.Upstream.BaseURL)

	cmd.SetContext(withRuntime(cmd.Context(), cfg, logger))
	return nil
}

func withRuntime(ctx context.Context, cfg *config.Config, logger *errors.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, configKey, cfg)
	return context.WithValue(ctx, loggerKey, logger)
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

// activateTab selects the requested insights tab, ignoring unknown names
func activateTab(page *view.Page, tab string, logger *errors.Logger) {
	if tab == "" || page.Tabs == nil {
		return
	}
	if !page.Tabs.Activate(tab) {
		logger.Warn("Unknown insights tab, keeping default", "tab", tab)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configFile, "config", "", "Config file (default: search /etc/resumesense, $HOME/.resumesense, .)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
