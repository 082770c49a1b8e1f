package main

import (
	"log/slog"
	"os"
	"sync"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/collision-data-api/internal/artifact"
	"github.com/couchcryptid/collision-data-api/internal/observability"
)

var rootFlags struct {
	dataDir string
	verbose bool
}

var rootCmd = &cobra.Command{
	Use:          "artifacts",
	Short:        "Manage cached collision aggregate artifacts",
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.dataDir, "data-dir", sharedcfg.EnvOrDefault("DATA_DIR", "./data"), "Artifact directory")
	f.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Log cache activity to stderr")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(warmCmd)
	rootCmd.AddCommand(purgeCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if rootFlags.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// metrics registers once per process so several commands can run in tests.
var metrics = sync.OnceValue(observability.NewMetrics)

func openCache(logger *slog.Logger) (*artifact.Cache, error) {
	return artifact.NewCache(rootFlags.dataDir, artifact.Options{}, logger, metrics())
}
