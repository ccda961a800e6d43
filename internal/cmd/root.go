// Package cmd implements the mmapurl CLI: map a remote object into memory,
// watch its residency live, or benchmark a scan, modeled directly on the
// teacher's internal/cmd/root.go structure.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dsmmcken/mmapurl/internal/config"
	"github.com/dsmmcken/mmapurl/internal/output"
	"github.com/dsmmcken/mmapurl/internal/pagemap"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	jsonFlag    bool
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool
	ConfigDir   string
)

// NewRootCmd builds the mmapurl root command and attaches every subcommand.
func NewRootCmd() *cobra.Command {
	cmd := newRootCmd()
	addConfigCommands(cmd)
	addGetCommand(cmd)
	addWatchCommand(cmd)
	addBenchCommand(cmd)
	return cmd
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mmapurl",
		Short:         "Demand-paged memory backed by a remote object",
		Long:          "mmapurl — map a remote object store URL into a read-only, demand-paged memory region.",
		Version:       fmt.Sprintf("mmapurl v%s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag && quietFlag {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			if jsonFlag {
				quietFlag = true
			}
			output.SetFlags(jsonFlag, quietFlag, verboseFlag)
			config.SetConfigDir(ConfigDir)
			return nil
		},
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pflags := rootCmd.PersistentFlags()
	pflags.BoolVarP(&jsonFlag, "json", "j", false, "Output as JSON")
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Extra detail to stderr")
	pflags.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	pflags.BoolVar(&noColorFlag, "no-color", false, "Disable ANSI colors")
	pflags.StringVar(&ConfigDir, "config-dir", "", "Override config directory (default: ~/.mmapurl)")

	if v := os.Getenv("MMAPURL_HOME"); v != "" && ConfigDir == "" {
		ConfigDir = v
	}
	if os.Getenv("NO_COLOR") != "" {
		noColorFlag = true
	}
	if os.Getenv("MMAPURL_JSON") == "1" {
		jsonFlag = true
	}

	return rootCmd
}

// Execute runs the mmapurl CLI, returning the first error encountered.
func Execute() error {
	cmd := NewRootCmd()
	return cmd.Execute()
}

// loadTunables reads ~/.mmapurl/config.toml and converts it to the
// pagemap.Tunables and worker-pool width every mapping command needs, so
// "mmapurl config set workers 4" actually changes engine behavior instead
// of just updating a file nobody reads.
func loadTunables() (pagemap.Tunables, int, error) {
	cfg, err := config.Load()
	if err != nil {
		return pagemap.Tunables{}, 0, err
	}
	t := pagemap.Tunables{
		Level1SliceSize:  cfg.Level1SliceSize,
		Level2SliceSize:  cfg.Level2SliceSize,
		MaxResidentPages: cfg.MaxResidentPages,
		EvictLowWater:    cfg.EvictLowWater,
		FetchTimeout:     time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
	}
	return t, cfg.Workers, nil
}
