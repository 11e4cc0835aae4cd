package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Josephrp/creditnexus-sub000/pkg/intent"
)

var routeCmd = &cobra.Command{
	Use:   "route <intent> <context.json>",
	Short: "Show where an intent would be routed",
	Long: `Parse an intent and its context the way they arrive from the interop bus
and print the selected view and the record handed to it.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[1])
		if err != nil {
			fatal("Failed to read context", err)
		}
		in, err := intent.ParseIntent(args[0], data)
		if err != nil {
			fatal("Invalid intent", err)
		}
		d, ok := intent.Route(in)
		if !ok {
			printJSON(map[string]any{"intent": in.Name, "routed": false})
			return
		}
		printJSON(map[string]any{
			"intent":         d.Intent,
			"routed":         true,
			"view":           d.View,
			"record":         d.Record,
			"staged_content": d.StagedContent,
		})
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
}
