package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	importedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
)

func styleFor(s Status) lipgloss.Style {
	switch s {
	case Imported:
		return importedStyle
	case Failed:
		return failedStyle
	default:
		return skippedStyle
	}
}

// Print writes a human-readable summary of the run to w.
func (s *Summary) Print(w io.Writer) {
	for _, r := range s.Results {
		line := fmt.Sprintf("%-8s | %-20s | %s", r.Status, r.Descriptor, r.AccountName)
		switch {
		case r.Err != nil:
			line += " | " + r.Err.Error()
		case r.Reason != "":
			line += " | " + r.Reason
		}
		fmt.Fprintln(w, styleFor(r.Status).Render(line))

		for _, f := range r.Files {
			archived := "archived"
			if !f.Archived {
				archived = "pending"
			}
			fmt.Fprintf(w, "    %s | %d rows | %d created | %d duplicates | %s\n",
				f.Key, f.Records, f.Created, f.Duplicates, archived)
		}
	}

	files, created, duplicates := s.Totals()
	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "\nRun %s%s: %d imported, %d skipped, %d failed; %d file(s), %d transaction(s) created, %d duplicate(s)\n",
		s.RunID, mode, s.ImportedCount(), s.SkippedCount(), s.FailedCount(), files, created, duplicates)
}
