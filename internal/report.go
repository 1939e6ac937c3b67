package internal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	reportHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62")).
				Padding(0, 1)

	reportLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))

	reportCountStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42")).
				Bold(true)

	reportWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

// RenderRunReport formats the run statistics for terminal display.
func RenderRunReport(stats RunStats) string {
	var b strings.Builder

	b.WriteString(reportHeaderStyle.Render("Import Report"))
	b.WriteString("\n\n")

	rows := []struct {
		label string
		count int
		warn  bool
	}{
		{"Lines read", stats.LinesRead, false},
		{"Messages created", stats.MessagesCreated, false},
		{"Messages already present", stats.MessagesExisting, false},
		{"Apparent duplicates", stats.ApparentDuplicates, stats.ApparentDuplicates > 0},
		{"Compacting actions created", stats.ActionsCreated, false},
		{"Heaps opened (fresh)", stats.HeapsFresh, false},
		{"Heaps opened (post-compacting)", stats.HeapsPostCompacting, false},
		{"Heaps opened (split)", stats.HeapsSplit, false},
		{"Heaps opened (no parent found)", stats.HeapsNoParent, stats.HeapsNoParent > 0},
		{"Heaps closed", stats.HeapsClosed, false},
		{"Retroactive splits", stats.Splits, false},
		{"Conflicts", stats.Conflicts, stats.Conflicts > 0},
		{"Orphans registered", stats.OrphansRegistered, false},
		{"Orphans resolved", stats.OrphansResolved, false},
		{"Orphans remaining", stats.OrphansRemaining, stats.OrphansRemaining > 0},
		{"Decode errors", stats.DecodeErrors, stats.DecodeErrors > 0},
		{"Unrecognized lines", stats.Unrecognized, false},
	}

	for _, row := range rows {
		count := reportCountStyle.Render(fmt.Sprintf("%6d", row.count))
		if row.warn {
			count = reportWarnStyle.Render(fmt.Sprintf("%6d", row.count))
		}
		fmt.Fprintf(&b, "  %s  %s\n", count, reportLabelStyle.Render(row.label))
	}

	return b.String()
}

// HeapSizeDistribution summarizes heap sizes for one era.
type HeapSizeDistribution struct {
	Heaps  int
	Min    int
	Median int
	Max    int
	Total  int
}

// ComputeHeapSizes collects the size distribution of an era's heaps.
func ComputeHeapSizes(store Store, eraID string) (*HeapSizeDistribution, error) {
	heaps, err := store.HeapsByEra(eraID)
	if err != nil {
		return nil, err
	}

	dist := &HeapSizeDistribution{Heaps: len(heaps)}
	if len(heaps) == 0 {
		return dist, nil
	}

	sizes := make([]int, 0, len(heaps))
	for _, heap := range heaps {
		size, err := store.HeapSize(heap.ID)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
		dist.Total += size
	}
	sort.Ints(sizes)

	dist.Min = sizes[0]
	dist.Max = sizes[len(sizes)-1]
	dist.Median = sizes[len(sizes)/2]
	return dist, nil
}

// RenderHeapSizes formats the size distribution line.
func RenderHeapSizes(dist *HeapSizeDistribution) string {
	if dist.Heaps == 0 {
		return reportLabelStyle.Render("  no heaps in era")
	}
	return fmt.Sprintf("  %s  %s",
		reportCountStyle.Render(fmt.Sprintf("%6d", dist.Heaps)),
		reportLabelStyle.Render(fmt.Sprintf(
			"heaps, %d message(s): size min %d / median %d / max %d",
			dist.Total, dist.Min, dist.Median, dist.Max)))
}
