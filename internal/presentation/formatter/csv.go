package formatter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVFormatter renders the per-thread rows of a summary as CSV, for
// feeding into spreadsheets or further scripting.
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Format(w io.Writer, s *Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"pid", "tid", "name", "slices", "max_depth", "non_nested", "cpu_slices", "min_ms", "max_ms"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range s.Processes {
		for _, t := range p.Threads {
			record := []string{
				strconv.Itoa(t.PID),
				strconv.Itoa(t.TID),
				t.Name,
				strconv.Itoa(t.SliceCount),
				strconv.Itoa(t.MaxDepth),
				strconv.Itoa(t.NonNestedCount),
				strconv.Itoa(t.CPUSliceCount),
				fmt.Sprintf("%g", t.Min),
				fmt.Sprintf("%g", t.Max),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
