package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	creditnexus "github.com/Josephrp/creditnexus-sub000"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

var (
	fuseSources sourceFlags
	fuseLLM     bool
	fuseSave    string
	fuseWrite   bool
)

var fuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Fuse the given sources through the backend",
	Long: `Load the given sources, print their advisory conflicts to the log and
call the fusion endpoint. The fused record and the authoritative conflicts are
printed as JSON.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		entries, err := fuseSources.load(ctx)
		if err != nil {
			fatal("Failed to load sources", err)
		}

		var opts []creditnexus.Option
		if cmd.Flags().Changed("llm") {
			opts = append(opts, creditnexus.WithLLMFusion(fuseLLM))
		}
		orc := newOrchestrator(opts...)
		defer orc.Close()

		for _, e := range entries {
			if err := orc.Collector.Upsert(e.Kind, e); err != nil {
				fatal("Invalid source", err)
			}
		}
		for _, c := range orc.Conflicts() {
			slog.Info("advisory conflict", "field", c.Field, "values", len(c.Values))
		}

		result, err := orc.Fuse(ctx)
		if errors.Is(err, core.ErrNoSources) {
			fatal("Nothing to fuse", errors.New("pass at least one of --audio, --image, --document, --text"))
		}
		if err != nil {
			fatal("Fusion failed", err)
		}

		if fuseSave != "" || fuseWrite {
			path, err := orc.SaveRecord(fuseSave)
			if err != nil {
				fatal("Failed to save record", err)
			}
			slog.Info("record saved", "path", path)
		}

		printJSON(map[string]any{
			"agreement":       result.Agreement,
			"conflicts":       result.Conflicts,
			"fusion_method":   result.Method,
			"source_tracking": result.SourceTracking,
		})
	},
}

func init() {
	fuseSources = addSourceFlags(fuseCmd)
	fuseCmd.Flags().BoolVar(&fuseLLM, "llm", false, "Ask the backend for LLM-assisted fusion")
	fuseCmd.Flags().StringVar(&fuseSave, "save", "", "Write the fused record to this path (.json or .yaml)")
	fuseCmd.Flags().BoolVar(&fuseWrite, "write", false, "Write the fused record to the configured output dir and format")
	rootCmd.AddCommand(fuseCmd)
}
