package cmd

import (
	"fmt"
	"os"

	"github.com/dsmmcken/mmapurl/internal/config"
	"github.com/dsmmcken/mmapurl/internal/output"
	"github.com/dsmmcken/mmapurl/internal/pagemap"
	"github.com/spf13/cobra"
)

func addGetCommand(rootCmd *cobra.Command) {
	var (
		offset int64
		length int64
		dummy  int64
	)

	getCmd := &cobra.Command{
		Use:   "get <URL>",
		Short: "Map a URL and print a byte range from it",
		Long:  "Maps the given object store URL as a demand-paged region and prints [offset, offset+length) to stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tunables, workers, err := loadTunables()
			if err != nil {
				return err
			}

			var (
				handler pagemap.FaultHandler
				size    int64
			)
			if dummy > 0 {
				handler, size, err = pagemap.NewDummyHandlerWithTunables(dummy, tunables)
			} else {
				if len(args) != 1 {
					return fmt.Errorf("get requires a URL argument, or --dummy-size for a synthetic mapping")
				}
				handler, size, err = pagemap.NewObjectStoreHandlerWithTunables(ctx, args[0], tunables)
			}
			if err != nil {
				return err
			}

			engine, err := pagemap.OpenWithWorkers(ctx, handler, size, workers)
			if err != nil {
				return fmt.Errorf("opening mapping: %w", err)
			}
			defer engine.Close()

			data := engine.Bytes()
			end := offset + length
			if length == 0 || end > int64(len(data)) {
				end = int64(len(data))
			}
			if offset > int64(len(data)) {
				offset = int64(len(data))
			}

			if output.IsJSON() {
				return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
					"size":   size,
					"offset": offset,
					"length": end - offset,
				})
			}

			_, err = os.Stdout.Write(data[offset:end])
			return err
		},
	}

	getCmd.Flags().Int64Var(&offset, "offset", 0, "Byte offset to start reading from")
	getCmd.Flags().Int64Var(&length, "length", 4096, "Number of bytes to read (0 = to end of mapping)")
	getCmd.Flags().Int64Var(&dummy, "dummy-size", 0, "Use a DummyHandler of this size instead of a real URL (demo/debug)")

	rootCmd.AddCommand(getCmd)
}
