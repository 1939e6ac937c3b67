package cmd

import (
	"fmt"
	"os"

	"github.com/magent-cryptograss/magenta/internal"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	archivePath string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "magenta",
	Short: "Reconstruct agent conversations from session logs",
	Long: `Magenta ingests append-only JSONL session logs and reconstructs the
conversations they record: eras of work, the context heaps within them,
and the compacting actions that glue heaps together.

Features:
  • Import session logs from files or whole directories
  • Watch a log directory and apply new lines as they land
  • Idempotent re-imports: the same log applied twice changes nothing
  • Export reconstructed heaps as JSONL, Markdown, YAML, or JSON

Quick Start:
  magenta import ~/.claude/projects/myproject --era myproject
  magenta eras                       # List known eras
  magenta list --era myproject       # List heaps in an era
  magenta show <heap-id>             # View one heap
  magenta export --era myproject --format md`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&archivePath, "db", "", "Path to the archive database (default ~/.magenta/archive.db)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// openArchive opens the SQLite archive at --db, or the default location
// under the user's home directory.
func openArchive() (*internal.SQLiteStore, error) {
	path := archivePath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		if err := os.MkdirAll(home+"/.magenta", 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
		path = home + "/.magenta/archive.db"
	}
	store, err := internal.OpenArchive(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return store, nil
}
