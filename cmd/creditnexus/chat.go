package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Josephrp/creditnexus-sub000/pkg/adapters/fs"
	"github.com/Josephrp/creditnexus-sub000/pkg/chat"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

var (
	chatGeneral bool
	chatDeal    string
	chatRecord  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant",
	Long: `Read messages from stdin, one per line, and print the assistant's replies.
Workflows launched by the assistant are monitored in the background and
reported when they finish. An empty line or EOF ends the session.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		orc := newOrchestrator()
		defer orc.Close()

		var opts []chat.Option
		if chatDeal != "" {
			opts = append(opts, chat.WithDealID(chatDeal))
		}
		if chatGeneral {
			opts = append(opts, chat.WithMode(chat.ModeGeneral))
		}
		if chatRecord != "" {
			rec, err := fs.LoadRecord(chatRecord)
			if err != nil {
				fatal("Failed to load record", err)
			}
			opts = append(opts, chat.WithRecord(rec))
		}

		session, err := orc.NewChatSession(opts...)
		if err != nil {
			fatal("Failed to open session", err)
		}
		slog.Info("chat session opened", "session", session.ID(), "mode", session.Mode())

		unsubscribe := orc.Bus.Subscribe(func(c core.Context) {
			switch c.Type {
			case core.ContextWorkflow:
				fmt.Printf("[workflow %s] %s %d%%\n", c.ID.WorkflowID, c.Workflow.Status, c.Workflow.Progress)
			case core.ContextConversationSummary:
				fmt.Printf("[summary] %s\n", c.Summary.Summary)
			}
		})
		defer unsubscribe()

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				break
			}
			resp, err := session.Send(ctx, line)
			if err != nil {
				slog.Error("message not delivered", "error", err)
				continue
			}
			fmt.Println(resp.Text())
		}
		session.Wait()
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatGeneral, "general", false, "Use the general assistant instead of the digitizer assistant")
	chatCmd.Flags().StringVar(&chatDeal, "deal", "", "Deal id sent with every message")
	chatCmd.Flags().StringVar(&chatRecord, "record", "", "Record file (.json or .yaml) sent as context")
	rootCmd.AddCommand(chatCmd)
}
