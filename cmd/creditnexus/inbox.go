package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Josephrp/creditnexus-sub000/pkg/sources"
	"github.com/Josephrp/creditnexus-sub000/pkg/workspace"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Watch the inbox directory and report conflicts as sources arrive",
	Long: `Load every source file of the configured inbox directory, then keep
watching it. Each change prints the current conflict list as JSON.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		orc := newOrchestrator()
		defer orc.Close()

		in, err := orc.Inbox()
		if err != nil {
			fatal("Invalid inbox configuration", err)
		}

		var last uint64
		unsubscribe := orc.Store.Subscribe(func(s workspace.State) {
			if s.Generation == last {
				return
			}
			last = s.Generation
			printJSON(map[string]any{"generation": s.Generation, "conflicts": s.Conflicts})
		})
		defer unsubscribe()

		if err := in.Scan(ctx); err != nil {
			slog.Warn("initial scan incomplete", "error", err)
		}
		if err := in.Watch(ctx); err != nil {
			fatal("Failed to watch inbox", err)
		}
		slog.Info("watching inbox", "dir", orc.Config().Inbox.Dir, "sources", orc.Collector.Len())

		<-ctx.Done()
		if err := in.Close(context.Background()); err != nil {
			slog.Error("inbox watcher did not stop cleanly", "error", err)
		}
		printJSON(sources.Snapshot{Generation: orc.Collector.Generation(), Entries: orc.Collector.Entries()})
	},
}

func init() {
	rootCmd.AddCommand(inboxCmd)
}
