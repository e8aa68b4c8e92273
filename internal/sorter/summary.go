package sorter

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/eargollo/sorter/internal/media"
)

// WriteSummary prints a human-readable report of log to w: counts per
// disposition, copied bytes per file kind, and every failure with its reason.
func WriteSummary(w io.Writer, log *RunLog) error {
	s := log.Summary()

	elapsed := log.FinishedAt.Sub(log.StartedAt)
	if log.FinishedAt.IsZero() {
		elapsed = time.Since(log.StartedAt)
	}
	status := "completed"
	if log.Interrupted {
		status = "interrupted"
	}
	if _, err := fmt.Fprintf(w, "Sorted %s -> %s (%s in %s)\n\n",
		log.Source, log.Target, status, elapsed.Round(time.Millisecond)); err != nil {
		return err
	}

	counts := newTable(w, ":")
	counts.Append([]string{"copied", strconv.Itoa(s.Copied)})
	counts.Append([]string{"renamed", strconv.Itoa(s.Renamed)})
	counts.Append([]string{"skipped (duplicate)", strconv.Itoa(s.Skipped)})
	counts.Append([]string{"failed", strconv.Itoa(s.Failed)})
	counts.Append([]string{"warnings", strconv.Itoa(s.Warnings)})
	counts.Append([]string{"bytes copied", humanize.IBytes(uint64(s.BytesCopied))})
	counts.Render()

	if len(s.BytesByKind) > 0 {
		fmt.Fprintln(w)
		kinds := make([]string, 0, len(s.BytesByKind))
		for k := range s.BytesByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		byKind := newTable(w, "")
		byKind.SetHeader([]string{"Kind", "Copied"})
		for _, k := range kinds {
			byKind.Append([]string{k, humanize.IBytes(uint64(s.BytesByKind[media.FileType(k)]))})
		}
		byKind.Render()
	}

	if len(s.Failures) > 0 {
		fmt.Fprintf(w, "\nFailures (%d):\n", len(s.Failures))
		failures := newTable(w, "")
		failures.SetHeader([]string{"Source", "Reason", "Error"})
		for _, f := range s.Failures {
			failures.Append([]string{f.Source, f.Reason, f.Error})
		}
		failures.Render()
	}

	if warnings := log.Warnings(); len(warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(warnings))
		for _, wr := range warnings {
			fmt.Fprintf(w, "  %s: %s (%s)\n", wr.Stage, wr.Path, wr.Message)
		}
	}
	return nil
}

func newTable(w io.Writer, columnSep string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(columnSep)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}
