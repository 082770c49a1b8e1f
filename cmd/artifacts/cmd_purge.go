package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge [name...]",
	Short: "Remove the named artifacts, or all of them",
	RunE:  runPurge,
}

func runPurge(cmd *cobra.Command, args []string) error {
	cache, err := openCache(newLogger())
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if err := cache.InvalidateAll(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged all artifacts in %s\n", cache.Dir())
		return nil
	}
	for _, name := range args {
		if err := cache.Invalidate(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", name)
	}
	return nil
}
