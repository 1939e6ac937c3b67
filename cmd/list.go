package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var listEraName string

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	closedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List context heaps in an era",
	Long:  `List the context heaps of an era in creation order, with their size and closure state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		era, err := archive.GetEraByName(listEraName)
		if err != nil {
			return fmt.Errorf("failed to look up era %q: %w", listEraName, err)
		}
		if era == nil {
			return fmt.Errorf("era %q not found", listEraName)
		}

		heaps, err := archive.HeapsByEra(era.ID)
		if err != nil {
			return fmt.Errorf("failed to list heaps: %w", err)
		}
		if len(heaps) == 0 {
			fmt.Printf("No heaps in era %s yet.\n", era.Name)
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("Era %s: %d heaps", era.Name, len(heaps))))
		fmt.Println()

		for i, heap := range heaps {
			size, err := archive.HeapSize(heap.ID)
			if err != nil {
				return fmt.Errorf("failed to size heap %s: %w", heap.ID, err)
			}
			action, err := archive.ActionForHeap(heap.ID)
			if err != nil {
				return fmt.Errorf("failed to check closure of heap %s: %w", heap.ID, err)
			}

			state := "open"
			if action != nil {
				state = closedStyle.Render("compacted")
				if action.Trigger != "" {
					state = closedStyle.Render("compacted/" + action.Trigger)
				}
			}

			line := []string{
				fmt.Sprintf("%3d.", i+1),
				idStyle.Render(heap.ID),
				typeStyle.Render(string(heap.Type)),
				countStyle.Render(fmt.Sprintf("%d msgs", size)),
				state,
				dateStyle.Render(heap.CreatedAt.Format(time.RFC3339)),
			}
			fmt.Println(strings.Join(line, "  "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listEraName, "era", "default", "Era whose heaps to list")
}
