package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magent-cryptograss/magenta/internal"
	"github.com/magent-cryptograss/magenta/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat  string
	exportOutDir  string
	exportEraName string
	exportHeapID  string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export context heaps to files",
	Long: `Export reconstructed heaps in various formats (jsonl, md, yaml, json).

By default every heap of the era is exported, one file per heap. Use
--heap to export a single heap. Use 'magenta list' to see heap IDs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		var heapIDs []string
		if exportHeapID != "" {
			heapIDs = []string{exportHeapID}
		} else {
			era, err := archive.GetEraByName(exportEraName)
			if err != nil {
				return fmt.Errorf("failed to look up era %q: %w", exportEraName, err)
			}
			if era == nil {
				return fmt.Errorf("era %q not found", exportEraName)
			}
			heaps, err := archive.HeapsByEra(era.ID)
			if err != nil {
				return fmt.Errorf("failed to list heaps: %w", err)
			}
			for _, heap := range heaps {
				heapIDs = append(heapIDs, heap.ID)
			}
		}
		if len(heapIDs) == 0 {
			fmt.Println("Nothing to export.")
			return nil
		}

		if err := os.MkdirAll(exportOutDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		for _, heapID := range heapIDs {
			view, err := internal.BuildHeapView(archive, heapID)
			if err != nil {
				return fmt.Errorf("failed to load heap %s: %w", heapID, err)
			}

			outPath := filepath.Join(exportOutDir, fmt.Sprintf("heap-%s.%s", heapID, exporter.Extension()))
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			if err := exporter.Export(view, f); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to export heap %s: %w", heapID, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to finish %s: %w", outPath, err)
			}
			internal.LogInfo("Exported %s", outPath)
		}

		fmt.Printf("Exported %d heaps to %s\n", len(heapIDs), exportOutDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "jsonl", "Export format: jsonl, md, yaml, json")
	exportCmd.Flags().StringVarP(&exportOutDir, "output", "o", ".", "Output directory")
	exportCmd.Flags().StringVar(&exportEraName, "era", "default", "Era whose heaps to export")
	exportCmd.Flags().StringVar(&exportHeapID, "heap", "", "Export a single heap by ID")
}
