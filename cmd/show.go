package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/magent-cryptograss/magenta/internal"
	"github.com/spf13/cobra"
)

var showRaw bool

var (
	senderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <heap-id>",
	Short: "Show one context heap",
	Long:  `Show a context heap's messages in order, with its compacting action if the heap has been closed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		view, err := internal.BuildHeapView(archive, args[0])
		if err != nil {
			return fmt.Errorf("failed to load heap: %w", err)
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("Heap %s", view.ID)))
		fmt.Printf("Era: %s   Type: %s   Messages: %d\n\n", view.Era, view.Type, len(view.Messages))

		rule := ruleStyle.Render(strings.Repeat("─", 60))
		for _, msg := range view.Messages {
			header := fmt.Sprintf("%d. %s", msg.Number, senderStyle.Render(msg.Sender))
			if msg.Kind != "message" {
				header += " " + kindStyle.Render("["+msg.Kind+"]")
			}
			if msg.ToolName != "" {
				header += " " + kindStyle.Render(msg.ToolName)
			}
			if msg.Timestamp != "" {
				header += "  " + dateStyle.Render(msg.Timestamp)
			}
			fmt.Println(header)

			content := msg.Content
			if !showRaw && len(content) > 2000 {
				content = content[:2000] + "\n… (truncated, use --raw for full content)"
			}
			fmt.Println(content)
			fmt.Println(rule)
		}

		if view.Closed != nil {
			fmt.Println(summaryStyle.Render("Compacted"))
			if view.Closed.Trigger != "" {
				fmt.Printf("Trigger: %s\n", view.Closed.Trigger)
			}
			if view.Closed.PreCompactTokens > 0 {
				fmt.Printf("Pre-compact tokens: %d\n", view.Closed.PreCompactTokens)
			}
			if view.Closed.Summary != "" {
				fmt.Println()
				fmt.Println(view.Closed.Summary)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Do not truncate long message content")
}
