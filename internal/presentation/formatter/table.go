package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/traceboard/traceboard/internal/util"
)

// TableFormatter renders a summary as box-drawn terminal tables: one
// for threads, one for CPUs when present, one for counters when
// present, followed by any import errors.
type TableFormatter struct{}

func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

func (f *TableFormatter) Format(w io.Writer, s *Summary) error {
	if s.Bounds.Set {
		fmt.Fprintf(w, "Timeline: %s\n\n", util.FormatTimeRange(s.Bounds.Min, s.Bounds.Max))
	}

	f.printThreadTable(w, s)

	if len(s.CPUs) > 0 {
		fmt.Fprintln(w)
		f.printCPUTable(w, s)
	}

	counters := collectCounters(s)
	if len(counters) > 0 {
		fmt.Fprintln(w)
		f.printCounterTable(w, counters)
	}

	if len(s.ImportErrors) > 0 {
		fmt.Fprintf(w, "\n%d import problem(s):\n", len(s.ImportErrors))
		for _, msg := range s.ImportErrors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	return nil
}

func (f *TableFormatter) printThreadTable(w io.Writer, s *Summary) {
	// Cap the free-text column so long thread names cannot push the
	// table past the terminal.
	maxNameWidth := util.TerminalWidth() / 4
	headers := []string{"PID", "TID", "Thread", "Slices", "Depth", "Async", "CPU Slices", "Span"}
	var rows [][]string
	for _, p := range s.Processes {
		for _, t := range p.Threads {
			rows = append(rows, []string{
				fmt.Sprintf("%d", t.PID),
				fmt.Sprintf("%d", t.TID),
				util.TruncateString(t.Name, maxNameWidth),
				util.FormatNumber(t.SliceCount),
				fmt.Sprintf("%d", t.MaxDepth),
				util.FormatNumber(t.NonNestedCount),
				util.FormatNumber(t.CPUSliceCount),
				util.FormatTimeRange(t.Min, t.Max),
			})
		}
	}
	printTable(w, headers, rows, map[int]bool{2: true, 7: true})
}

func (f *TableFormatter) printCPUTable(w io.Writer, s *Summary) {
	headers := []string{"CPU", "Slices", "Counters"}
	var rows [][]string
	for _, c := range s.CPUs {
		ids := make([]string, 0, len(c.Counters))
		for _, ctr := range c.Counters {
			ids = append(ids, ctr.ID)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.Number),
			util.FormatNumber(c.SliceCount),
			strings.Join(ids, ", "),
		})
	}
	printTable(w, headers, rows, map[int]bool{2: true})
}

func (f *TableFormatter) printCounterTable(w io.Writer, counters []CounterSummary) {
	headers := []string{"Counter", "Owner", "Series", "Samples", "Max Total"}
	var rows [][]string
	for _, c := range counters {
		rows = append(rows, []string{
			c.ID,
			c.Parent,
			strings.Join(c.SeriesNames, ", "),
			util.FormatNumber(c.SampleCount),
			fmt.Sprintf("%g", c.MaxTotal),
		})
	}
	printTable(w, headers, rows, map[int]bool{0: true, 1: true, 2: true})
}

func collectCounters(s *Summary) []CounterSummary {
	var out []CounterSummary
	for _, p := range s.Processes {
		out = append(out, p.Counters...)
	}
	for _, c := range s.CPUs {
		out = append(out, c.Counters...)
	}
	return out
}

// printTable draws one bordered table. leftAligned marks the columns
// carrying text; everything else is right-aligned numeric data.
func printTable(w io.Writer, headers []string, rows [][]string, leftAligned map[int]bool) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = util.GetDisplayWidth(h)
	}
	for _, row := range rows {
		for i, value := range row {
			if width := util.GetDisplayWidth(value); width > widths[i] {
				widths[i] = width
			}
		}
	}

	printBorder(w, widths, "top")
	printRow(w, headers, widths, nil)
	printBorder(w, widths, "middle")
	for _, row := range rows {
		printRow(w, row, widths, leftAligned)
	}
	printBorder(w, widths, "bottom")
}

func printBorder(w io.Writer, widths []int, borderType string) {
	var left, middle, right string
	switch borderType {
	case "top":
		left, middle, right = "┌", "┬", "┐"
	case "middle":
		left, middle, right = "├", "┼", "┤"
	case "bottom":
		left, middle, right = "└", "┴", "┘"
	}

	fmt.Fprint(w, left)
	for i, width := range widths {
		fmt.Fprint(w, strings.Repeat("─", width+2))
		if i < len(widths)-1 {
			fmt.Fprint(w, middle)
		}
	}
	fmt.Fprintln(w, right)
}

func printRow(w io.Writer, values []string, widths []int, leftAligned map[int]bool) {
	fmt.Fprint(w, "│")
	for i, value := range values {
		// Headers (nil map) and text columns are left-aligned.
		if leftAligned == nil || leftAligned[i] {
			fmt.Fprintf(w, " %s │", util.PadString(value, widths[i]))
		} else {
			pad := widths[i] - util.GetDisplayWidth(value)
			if pad < 0 {
				pad = 0
			}
			fmt.Fprintf(w, " %s%s │", strings.Repeat(" ", pad), value)
		}
	}
	fmt.Fprintln(w)
}
