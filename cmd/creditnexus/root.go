package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	creditnexus "github.com/Josephrp/creditnexus-sub000"
)

var (
	verbose    bool
	configPath string
	baseURL    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "creditnexus",
	Short: "Orchestrate multi-source credit agreement extraction",
	Long: `creditnexus collects extraction results from several sources (audio,
image, document, text), reports the fields they disagree on, fuses them through
the backend and follows the long-running workflows launched from chat.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: nearest creditnexus.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend base URL (overrides the config file)")
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig() (creditnexus.Config, error) {
	cfg, err := creditnexus.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	return cfg, cfg.Validate()
}

// newOrchestrator builds an orchestrator from the resolved config.
func newOrchestrator(opts ...creditnexus.Option) *creditnexus.Orchestrator {
	cfg, err := loadConfig()
	if err != nil {
		fatal("Failed to load config", err)
	}
	base := []creditnexus.Option{
		creditnexus.WithConfig(cfg),
		creditnexus.WithLogger(slog.Default()),
	}
	orc, err := creditnexus.New(append(base, opts...)...)
	if err != nil {
		fatal("Failed to initialize orchestrator", err)
	}
	return orc
}
