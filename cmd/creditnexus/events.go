package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/sources"
)

var eventsFuse bool

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream the contexts broadcast while the inbox is processed",
	Long: `Load and watch the configured inbox directory like "inbox", and print
every context broadcast on the bus as one JSON line. With --fuse the sources
are fused after each change, so fused records are broadcast as loan contexts.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		orc := newOrchestrator()
		defer orc.Close()

		events, err := orc.Events(ctx)
		if err != nil {
			fatal("Failed to subscribe to the bus", err)
		}

		changed := make(chan struct{}, 1)
		unsubscribe := orc.Collector.OnChange(func(sources.Snapshot) {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		in, err := orc.Inbox()
		if err != nil {
			fatal("Invalid inbox configuration", err)
		}
		if err := in.Scan(ctx); err != nil {
			slog.Warn("initial scan incomplete", "error", err)
		}
		if err := in.Watch(ctx); err != nil {
			fatal("Failed to watch inbox", err)
		}
		defer func() {
			if err := in.Close(context.Background()); err != nil {
				slog.Error("inbox watcher did not stop cleanly", "error", err)
			}
		}()

		for {
			select {
			case e, ok := <-events.Events():
				if !ok {
					if n := events.Dropped(); n > 0 {
						slog.Warn("contexts dropped by a slow consumer", "count", n)
					}
					return
				}
				if c, isContext := e.(core.Context); isContext {
					printJSONLine(c)
					continue
				}
				fmt.Println(e.String())
			case <-changed:
				if !eventsFuse {
					continue
				}
				if _, err := orc.Fuse(ctx); err != nil && !errors.Is(err, core.ErrNoSources) {
					slog.Warn("fusion failed", "error", err)
				}
			}
		}
	},
}

func init() {
	eventsCmd.Flags().BoolVar(&eventsFuse, "fuse", false, "Fuse the sources after every inbox change")
	rootCmd.AddCommand(eventsCmd)
}
