package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	creditnexus "github.com/Josephrp/creditnexus-sub000"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of creditnexus",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("creditnexus version %s\n", strings.TrimSpace(creditnexus.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
