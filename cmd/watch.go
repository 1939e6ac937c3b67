package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/magent-cryptograss/magenta/internal"
	"github.com/spf13/cobra"
)

var watchEra string

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <dir>...",
	Short: "Watch log directories and import new lines as they arrive",
	Long: `Watch one or more directories of JSONL session logs and apply new
lines to the archive as they are written. Existing files are caught up
first, resuming from any previously persisted offsets.

Stop with Ctrl-C; offsets are saved so a later watch or import resumes
where this one left off.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		era, err := internal.GetOrCreateEra(archive, watchEra)
		if err != nil {
			return fmt.Errorf("failed to resolve era %q: %w", watchEra, err)
		}

		driver, err := internal.ResumeDriver(archive, era)
		if err != nil {
			return fmt.Errorf("failed to resume import state: %w", err)
		}

		tailer, err := internal.NewTailer(driver, args)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}

		if err := tailer.ScanExisting(); err != nil {
			return fmt.Errorf("initial catch-up failed: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		internal.LogInfo("Watching %d directories in era %s", len(args), era.Name)
		if err := tailer.Run(ctx); err != nil {
			return fmt.Errorf("watch failed: %w", err)
		}

		fmt.Println(internal.RenderRunReport(driver.Stats()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchEra, "era", "default", "Era to import into")
}
