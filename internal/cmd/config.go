package cmd

import (
	"fmt"

	"github.com/dsmmcken/mmapurl/internal/config"
	"github.com/dsmmcken/mmapurl/internal/output"
	"github.com/spf13/cobra"
)

func addConfigCommands(rootCmd *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mmapurl configuration",
		Long:  "Show, get, and set values in the mmapurl config file (~/.mmapurl/config.toml).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.PrintJSON(cmd.OutOrStdout(), cfg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", config.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "workers = %d\n", cfg.Workers)
			fmt.Fprintf(cmd.OutOrStdout(), "max_resident_pages = %d\n", cfg.MaxResidentPages)
			fmt.Fprintf(cmd.OutOrStdout(), "evict_low_water = %d\n", cfg.EvictLowWater)
			fmt.Fprintf(cmd.OutOrStdout(), "level1_slice_size = %d\n", cfg.Level1SliceSize)
			fmt.Fprintf(cmd.OutOrStdout(), "level2_slice_size = %d\n", cfg.Level2SliceSize)
			fmt.Fprintf(cmd.OutOrStdout(), "fetch_timeout_seconds = %d\n", cfg.FetchTimeoutSeconds)
			return nil
		},
	}

	configGetCmd := &cobra.Command{
		Use:   "get <KEY>",
		Short: "Get a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := config.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	}

	configSetCmd := &cobra.Command{
		Use:   "set <KEY> <VALUE>",
		Short: "Set a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(args[0], args[1]); err != nil {
				return err
			}
			if !output.IsQuiet() {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			}
			return nil
		},
	}

	configPathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Path())
			return nil
		},
	}

	configCmd.AddCommand(configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
