package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	creditnexus "github.com/Josephrp/creditnexus-sub000"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/workflow"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <research|analysis|peoplehub> <workflow-id>",
	Short: "Poll a workflow until it finishes",
	Long: `Poll the results endpoint of a long-running workflow and print its
final state. Ctrl+C cancels locally; the backend task keeps running.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		kind := core.WorkflowKind(args[0])
		if !kind.Valid() {
			fatal("Invalid workflow kind", fmt.Errorf("%q", args[0]))
		}
		id := args[1]

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var opts []creditnexus.Option
		if watchInterval > 0 {
			opts = append(opts, creditnexus.WithPollInterval(watchInterval))
		}
		orc := newOrchestrator(opts...)
		defer orc.Close()

		done := make(chan core.WorkflowStatus, 1)
		unsubscribe := orc.Bus.Subscribe(func(c core.Context) {
			if c.Type != core.ContextWorkflow || c.ID == nil || c.ID.WorkflowID != id {
				return
			}
			slog.Info("workflow update", "status", c.Workflow.Status, "progress", c.Workflow.Progress)
			if c.Workflow.Status.IsTerminal() {
				select {
				case done <- c.Workflow.Status:
				default:
				}
			}
		})
		defer unsubscribe()

		if err := orc.Monitor.Launch(id, kind); err != nil {
			fatal("Failed to start monitoring", err)
		}

		select {
		case <-done:
		case <-ctx.Done():
			if err := orc.Monitor.Cancel(id); err != nil {
				fatal("Failed to cancel", err)
			}
		}

		wf, _ := orc.Monitor.Get(id)
		printJSON(wf)
		if wf.Status == core.WorkflowFailed {
			os.Exit(2)
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, fmt.Sprintf("Polling interval (default %s or the config file)", workflow.DefaultInterval))
	rootCmd.AddCommand(watchCmd)
}
