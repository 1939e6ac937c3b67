package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/magent-cryptograss/magenta/internal"
	"github.com/spf13/cobra"
)

// erasCmd represents the eras command
var erasCmd = &cobra.Command{
	Use:   "eras",
	Short: "List known eras",
	Long:  `List the eras recorded in the archive with their heap counts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		eras, err := archive.Eras()
		if err != nil {
			return fmt.Errorf("failed to list eras: %w", err)
		}
		if len(eras) == 0 {
			fmt.Println("No eras found. Run 'magenta import' to create one.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tID\tHEAPS\tCREATED")
		for _, era := range eras {
			heaps, err := archive.HeapsByEra(era.ID)
			if err != nil {
				return fmt.Errorf("failed to count heaps for era %s: %w", era.Name, err)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				era.Name, era.ID, len(heaps), era.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

// erasCreateCmd creates an era ahead of any import
var erasCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new era",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		era, err := internal.GetOrCreateEra(archive, args[0])
		if err != nil {
			return fmt.Errorf("failed to create era: %w", err)
		}
		fmt.Printf("Era %s (%s)\n", era.Name, era.ID)
		return nil
	},
}

// erasRenameCmd renames an existing era
var erasRenameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Rename an era",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		era, err := archive.GetEraByName(args[0])
		if err != nil {
			return fmt.Errorf("failed to look up era %q: %w", args[0], err)
		}
		if era == nil {
			return fmt.Errorf("era %q not found", args[0])
		}
		if err := archive.RenameEra(era.ID, args[1]); err != nil {
			return fmt.Errorf("failed to rename era: %w", err)
		}
		fmt.Printf("Renamed era %s to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(erasCmd)
	erasCmd.AddCommand(erasCreateCmd)
	erasCmd.AddCommand(erasRenameCmd)
}
