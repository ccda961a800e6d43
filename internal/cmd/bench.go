package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dsmmcken/mmapurl/internal/output"
	"github.com/dsmmcken/mmapurl/internal/pagemap"
	"github.com/spf13/cobra"
)

func addBenchCommand(rootCmd *cobra.Command) {
	var (
		dummySize int64
		random    bool
	)

	benchCmd := &cobra.Command{
		Use:   "bench [URL]",
		Short: "Scan a mapping linearly (or randomly) and report throughput",
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
			if dummySize > 0 || len(args) == 0 {
				sz := dummySize
				if sz == 0 {
					sz = 4096 * 32000
				}
				handler, size, err = pagemap.NewDummyHandlerWithTunables(sz, tunables)
			} else {
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
			pageSize := pagemap.PageSize()

			start := time.Now()
			var checksum byte
			if random {
				perm := randomPagePermutation(len(data), pageSize)
				for _, page := range perm {
					for i := page * pageSize; i < page*pageSize+pageSize && i < len(data); i++ {
						checksum ^= data[i]
					}
				}
			} else {
				for i := 0; i < len(data); i++ {
					checksum ^= data[i]
				}
			}
			elapsed := time.Since(start)

			throughputMBs := float64(len(data)) / elapsed.Seconds() / (1024 * 1024)

			if output.IsJSON() {
				return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
					"bytes":           len(data),
					"elapsed_seconds": elapsed.Seconds(),
					"throughput_mb_s": throughputMBs,
					"checksum":        checksum,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d bytes in %s (%.2f MB/s), checksum=%d\n",
				len(data), elapsed, throughputMBs, checksum)
			return nil
		},
	}

	benchCmd.Flags().Int64Var(&dummySize, "dummy-size", 0, "Use a DummyHandler of this size instead of a real URL")
	benchCmd.Flags().BoolVar(&random, "random", false, "Scan pages in random order instead of linear")

	rootCmd.AddCommand(benchCmd)
}

func randomPagePermutation(dataLen, pageSize int) []int {
	numPages := (dataLen + pageSize - 1) / pageSize
	return rand.Perm(numPages)
}
