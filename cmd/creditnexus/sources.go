package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Josephrp/creditnexus-sub000/pkg/adapters/fs"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// sourceFlags holds one file path per source kind.
type sourceFlags map[core.SourceKind]*string

func addSourceFlags(cmd *cobra.Command) sourceFlags {
	flags := make(sourceFlags)
	for _, kind := range core.SourceKinds() {
		flags[kind] = cmd.Flags().String(kind.String(), "", fmt.Sprintf("JSON file with the %s extraction", kind))
	}
	return flags
}

// load reads every given file concurrently. Entries come back in kind order.
func (f sourceFlags) load(ctx context.Context) ([]core.SourceEntry, error) {
	var kinds []core.SourceKind
	for _, kind := range core.SourceKinds() {
		if p := f[kind]; p != nil && *p != "" {
			kinds = append(kinds, kind)
		}
	}

	entries := make([]core.SourceEntry, len(kinds))
	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := fs.ReadSource(*f[kind], kind)
			if err != nil {
				return fmt.Errorf("--%s: %w", kind, err)
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// printJSONLine writes v as a single line, for streams.
func printJSONLine(v any) {
	if err := json.NewEncoder(os.Stdout).Encode(v); err != nil {
		fatal("Failed to encode output", err)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("Failed to encode output", err)
	}
}
