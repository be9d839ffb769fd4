package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/passage/internal/connectors/filesystem"
)

var (
	watchDebounce time.Duration
	watchNoSync   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the corpus in sync with a directory",
	Long: `Imports every file under the directory, then re-ingests files as they
change and removes them from the corpus when they are deleted.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", filesystem.DefaultDebounce, "quiet period before a change is applied")
	watchCmd.Flags().BoolVar(&watchNoSync, "no-sync", false, "skip the initial import")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return errors.New("import service not configured")
	}

	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", args[0])
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopMaintenance := startMaintenance(ctx)
	defer stopMaintenance()

	w := filesystem.New(args[0], importService).WithDebounce(watchDebounce)

	if !watchNoSync {
		results, err := w.Sync(ctx)
		cmd.Printf("Imported %d documents from %s\n", len(results), args[0])
		if err != nil {
			cmd.PrintErrf("Some files failed: %v\n", err)
		}
	}

	cmd.Println("Watching for changes (Ctrl+C to stop)...")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
