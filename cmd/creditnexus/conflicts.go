package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Josephrp/creditnexus-sub000/pkg/conflict"
)

var conflictsSources sourceFlags

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List the fields the given sources disagree on",
	Long: `Compare the extraction results of up to four sources field by field
without calling the backend.`,
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := conflictsSources.load(context.Background())
		if err != nil {
			fatal("Failed to load sources", err)
		}
		if len(entries) == 0 {
			fatal("Nothing to compare", fmt.Errorf("pass at least one of --audio, --image, --document, --text"))
		}
		printJSON(conflict.Detect(entries))
	},
}

func init() {
	conflictsSources = addSourceFlags(conflictsCmd)
	rootCmd.AddCommand(conflictsCmd)
}
