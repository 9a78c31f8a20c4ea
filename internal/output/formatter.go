// Package output renders run outcomes as human-friendly tables.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/seabed-tools/cbreplay/internal/runner"
)

// Formatter provides clean, human-friendly output
type Formatter interface {
	PrintOutcomes(outcomes []runner.Outcome)
	PrintSummary(summary runner.Summary)
}

type formatter struct {
	writer  io.Writer
	verbose bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	gray   *color.Color
}

// NewFormatter creates a new output formatter
func NewFormatter(writer io.Writer, verbose bool) Formatter {
	return &formatter{
		writer:  writer,
		verbose: verbose,
		green:   color.New(color.FgGreen),
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
		gray:    color.New(color.FgHiBlack),
	}
}

// PrintOutcomes renders one table row per example.
func (f *formatter) PrintOutcomes(outcomes []runner.Outcome) {
	table := tablewriter.NewWriter(f.writer)
	table.SetHeader([]string{"Example", "Status", "Elapsed", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetBorder(true)

	for _, o := range outcomes {
		detail := o.Detail
		if !f.verbose && len(detail) > 80 {
			detail = detail[:77] + "..."
		}

		table.Append([]string{o.ExampleID, f.colorStatus(o.Status), formatDuration(o.Elapsed), detail})
	}

	table.Render()
}

// PrintSummary renders aggregate counts after the outcome table.
func (f *formatter) PrintSummary(summary runner.Summary) {
	fmt.Fprintln(f.writer)

	switch {
	case summary.Errored > 0:
		f.yellow.Fprintf(f.writer, "⚠ %d/%d passed, %d failed, %d errored", summary.Passed, summary.Total, summary.Failed, summary.Errored)
	case summary.Failed > 0:
		f.red.Fprintf(f.writer, "✗ %d/%d passed, %d failed", summary.Passed, summary.Total, summary.Failed)
	default:
		f.green.Fprintf(f.writer, "✓ %d/%d passed", summary.Passed, summary.Total)
	}

	f.gray.Fprintf(f.writer, " (%s)\n", formatDuration(summary.Elapsed))
}

func (f *formatter) colorStatus(status runner.Status) string {
	switch status {
	case runner.StatusPassed:
		return f.green.Sprint("PASS")
	case runner.StatusFailed:
		return f.red.Sprint("FAIL")
	default:
		return f.yellow.Sprint("ERROR")
	}
}

func formatDuration(d time.Duration) string {
	if d >= time.Second {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(time.Millisecond).String()
}
