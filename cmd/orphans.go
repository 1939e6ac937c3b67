package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// orphansCmd represents the orphans command
var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List compacting actions not yet bound to a heap",
	Long: `List compacting actions whose boundary message has not been seen.
An orphan usually means the log that contains the boundary has not been
imported yet; importing it and reconciling binds the action.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		actions, err := archive.OrphanedActions()
		if err != nil {
			return fmt.Errorf("failed to list orphaned actions: %w", err)
		}
		if len(actions) == 0 {
			fmt.Println("No orphaned compacting actions.")
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%d orphaned compacting actions", len(actions))))
		for _, action := range actions {
			target := action.ResolutionTarget()
			summary := action.Summary
			if len(summary) > 80 {
				summary = summary[:80] + "…"
			}
			fmt.Printf("  %s  waiting on %s\n", idStyle.Render(action.ID), target)
			if summary != "" {
				fmt.Printf("      %s\n", dateStyle.Render(summary))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(orphansCmd)
}
