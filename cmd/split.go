package cmd

import (
	"fmt"

	"github.com/magent-cryptograss/magenta/internal"
	"github.com/spf13/cobra"
)

var splitEra string

// splitCmd represents the split command
var splitCmd = &cobra.Command{
	Use:   "split <message-id>",
	Short: "Split a heap at a message",
	Long: `Split the heap containing the given message so that everything after
it moves into a new split-point heap. The named message stays in its
heap and marks the point of divergence. Use this when a conversation
diverged without a compaction, such as after an export.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		era, err := internal.GetOrCreateEra(archive, splitEra)
		if err != nil {
			return fmt.Errorf("failed to resolve era %q: %w", splitEra, err)
		}

		driver, err := internal.ResumeDriver(archive, era)
		if err != nil {
			return fmt.Errorf("failed to resume import state: %w", err)
		}

		heap, err := driver.ManualSplit(args[0])
		if err != nil {
			return fmt.Errorf("split failed: %w", err)
		}
		if err := driver.SaveState(); err != nil {
			return fmt.Errorf("failed to persist import state: %w", err)
		}

		fmt.Printf("Created split-point heap %s\n", heap.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringVar(&splitEra, "era", "default", "Era containing the message")
}
