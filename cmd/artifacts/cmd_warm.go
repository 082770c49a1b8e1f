package main

import (
	"errors"
	"fmt"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/store"
	"github.com/couchcryptid/collision-data-api/internal/tabular"
)

var warmFlags struct {
	databaseURL string
	force       bool
}

var warmCmd = &cobra.Command{
	Use:   "warm [aggregate...]",
	Short: "Compute missing or stale artifacts (all aggregates by default)",
	Long: "Compute missing or stale artifacts. Aggregates: at_fault_vehicles, traumas.\n" +
		"With --force the stored files are removed first.",
	RunE: runWarm,
}

func init() {
	f := warmCmd.Flags()
	f.StringVar(&warmFlags.databaseURL, "database-url", sharedcfg.EnvOrDefault("DATABASE_URL", ""), "Database URL or sqlite path")
	f.BoolVar(&warmFlags.force, "force", false, "Recompute even when a fresh artifact exists")
}

func runWarm(cmd *cobra.Command, args []string) error {
	if warmFlags.databaseURL == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}

	kinds := domain.Aggregates()
	if len(args) > 0 {
		kinds = nil
		for _, a := range args {
			k, err := domain.ParseAggregate(a)
			if err != nil {
				return err
			}
			kinds = append(kinds, k)
		}
	}

	logger := newLogger()
	cache, err := openCache(logger)
	if err != nil {
		return err
	}

	st, err := store.Open(cmd.Context(), warmFlags.databaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	// Aggregates do not page, so the page size bound is irrelevant here.
	m := tabular.NewMaterializer(tabular.New(st, 1, logger, metrics()), cache)
	out := cmd.OutOrStdout()
	for _, k := range kinds {
		if warmFlags.force {
			if err := cache.Invalidate(k.ArtifactName()); err != nil {
				return err
			}
		}
		entry, err := m.Materialize(cmd.Context(), k)
		if err != nil {
			return fmt.Errorf("warm %s: %w", k, err)
		}
		state := "fresh"
		if entry.Computed {
			state = "built"
		}
		fmt.Fprintf(out, "%-14s %-6s %s (%d bytes)\n", entry.Name, state, entry.Fingerprint, entry.Size)
	}
	return nil
}
