package cmd

import (
	"fmt"
	"os"

	"github.com/magent-cryptograss/magenta/internal"
	"github.com/spf13/cobra"
)

var (
	importEra    string
	importDryRun bool
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import session logs into the archive",
	Long: `Import one or more JSONL session logs, or directories of them, into
the archive. Re-importing the same log is a no-op: lines already applied
leave the archive unchanged.

With --dry-run the import runs against an in-memory store and only the
run report is printed; the archive on disk is not touched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var store internal.Store
		if importDryRun {
			store = internal.NewMemStore()
		} else {
			archive, err := openArchive()
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()
			store = archive
		}

		era, err := internal.GetOrCreateEra(store, importEra)
		if err != nil {
			return fmt.Errorf("failed to resolve era %q: %w", importEra, err)
		}

		driver, err := internal.ResumeDriver(store, era)
		if err != nil {
			return fmt.Errorf("failed to resume import state: %w", err)
		}

		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}
			if info.IsDir() {
				err = driver.ImportDir(path)
			} else {
				err = driver.ImportFile(path)
			}
			if err != nil {
				return fmt.Errorf("import of %s failed: %w", path, err)
			}
		}

		if err := driver.Reconcile(); err != nil {
			return fmt.Errorf("reconciliation failed: %w", err)
		}
		if !importDryRun {
			if err := driver.SaveState(); err != nil {
				return fmt.Errorf("failed to persist import state: %w", err)
			}
		}

		stats := driver.Stats()
		fmt.Println(internal.RenderRunReport(stats))

		dist, err := internal.ComputeHeapSizes(store, era.ID)
		if err != nil {
			internal.LogWarn("Failed to compute heap sizes: %v", err)
		} else {
			fmt.Println(internal.RenderHeapSizes(dist))
		}

		if importDryRun {
			fmt.Println("Dry run: no changes were written to the archive.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importEra, "era", "default", "Era to import into")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Run the import in memory without writing to the archive")
}
