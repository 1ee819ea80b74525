package formatter

import (
	"io"

	"github.com/traceboard/traceboard/internal/core/model"
)

// Summary is the flattened, display-oriented view of an imported
// timeline model.
type Summary struct {
	Bounds       model.Bounds     `json:"bounds"`
	Processes    []ProcessSummary `json:"processes"`
	CPUs         []CPUSummary     `json:"cpus"`
	ImportErrors []string         `json:"importErrors,omitempty"`
}

type ProcessSummary struct {
	PID      int              `json:"pid"`
	Threads  []ThreadSummary  `json:"threads"`
	Counters []CounterSummary `json:"counters,omitempty"`
}

type ThreadSummary struct {
	PID            int     `json:"pid"`
	TID            int     `json:"tid"`
	Name           string  `json:"name,omitempty"`
	SliceCount     int     `json:"sliceCount"`
	MaxDepth       int     `json:"maxDepth"`
	NonNestedCount int     `json:"nonNestedCount"`
	CPUSliceCount  int     `json:"cpuSliceCount"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
}

type CPUSummary struct {
	Number     int              `json:"number"`
	SliceCount int              `json:"sliceCount"`
	Counters   []CounterSummary `json:"counters,omitempty"`
}

type CounterSummary struct {
	ID          string   `json:"id"`
	Parent      string   `json:"parent"`
	SeriesNames []string `json:"seriesNames"`
	SampleCount int      `json:"sampleCount"`
	MaxTotal    float64  `json:"maxTotal"`
}

// Formatter renders a summary to a writer.
type Formatter interface {
	Format(w io.Writer, s *Summary) error
}
