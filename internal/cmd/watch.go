package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dsmmcken/mmapurl/internal/pagemap"
	"github.com/dsmmcken/mmapurl/internal/tui"
	"github.com/dsmmcken/mmapurl/internal/tui/screens"
)

func addWatchCommand(rootCmd *cobra.Command) {
	var dummySize int64

	watchCmd := &cobra.Command{
		Use:   "watch [URL]",
		Short: "Map a URL and show a live dashboard for the mapping",
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
				source  string
			)
			switch {
			case dummySize > 0:
				handler, size, err = pagemap.NewDummyHandlerWithTunables(dummySize, tunables)
				source = "dummy"
			case len(args) == 1:
				handler, size, err = pagemap.NewObjectStoreHandlerWithTunables(ctx, args[0], tunables)
				source = args[0]
			default:
				return fmt.Errorf("watch requires a URL argument, or --dummy-size for a synthetic mapping")
			}
			if err != nil {
				return err
			}

			engine, err := pagemap.OpenWithWorkers(ctx, handler, size, workers)
			if err != nil {
				return fmt.Errorf("opening mapping: %w", err)
			}

			app := tui.NewApp(screens.NewWatchScreen(source, engine))
			p := tea.NewProgram(app)
			_, err = p.Run()
			return err
		},
	}

	watchCmd.Flags().Int64Var(&dummySize, "dummy-size", 0, "Use a DummyHandler of this size instead of a real URL")

	rootCmd.AddCommand(watchCmd)
}
