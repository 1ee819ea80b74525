package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/traceboard/traceboard/internal/core/model"
	"github.com/traceboard/traceboard/internal/data/importer"
	"github.com/traceboard/traceboard/internal/data/watcher"
	"github.com/traceboard/traceboard/internal/presentation/formatter"
	"github.com/traceboard/traceboard/internal/util"
)

var (
	// Output related
	outputFormat string

	// Import behavior
	noZero bool

	// Live mode
	watch bool

	// Logging related
	logLevel  string
	logFile   string
	logFormat string
	debug     bool

	rootCmd = &cobra.Command{
		Use:   "traceboard [flags] <trace> [additional-trace ...]",
		Short: "Kernel and userspace trace analysis tool",
		Long: `traceboard reconstructs a timeline from execution traces and reports it.

The first trace is the primary one and defines the clock domain. Any
further traces are merged into it; a kernel trace merged this way must
carry a trace_event_clock_sync marker so its timestamps can be aligned.

Supported inputs are Linux kernel traces in the ftrace/perf text format
and JSON arrays of phase-tagged trace events.

Examples:
  traceboard app.json                        # Analyze a single trace
  traceboard app.json kernel.txt             # Merge a kernel trace into it
  traceboard --output json app.json          # Machine-readable report
  traceboard --no-zero app.json              # Keep raw timestamps
  traceboard --watch app.json                # Re-analyze on every change`,
		Args: cobra.MinimumNArgs(1),
		RunE: runTrace,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "table",
		"Output format (table, json, csv)")
	rootCmd.Flags().BoolVar(&noZero, "no-zero", false,
		"Keep raw timestamps instead of shifting the timeline to start at zero")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false,
		"Watch the trace files and re-analyze on change")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log entry format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug logging to stderr")
}

func runTrace(cmd *cobra.Command, args []string) error {
	if debug {
		logLevel = "debug"
	}
	util.InitLogger(logLevel, logFile, logFormat, debug)

	output, err := newFormatter(outputFormat)
	if err != nil {
		return err
	}

	if err := analyzeOnce(args, output); err != nil {
		return err
	}
	if !watch {
		return nil
	}
	return watchAndReanalyze(args, output)
}

// analyzeOnce imports the given trace files into a fresh model and
// prints the report.
func analyzeOnce(paths []string, output formatter.Formatter) error {
	traces := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read trace %s: %w", path, err)
		}
		traces = append(traces, data)
	}

	m := model.New()
	session := importer.NewSession(importer.DefaultFormats(), !noZero)
	if err := session.Import(m, traces[0], traces[1:]...); err != nil {
		return err
	}

	return output.Format(os.Stdout, formatter.BuildSummary(m))
}

func watchAndReanalyze(paths []string, output formatter.Formatter) error {
	fw, err := watcher.NewFileWatcher(paths)
	if err != nil {
		return err
	}
	defer fw.Close()

	util.LogInfof("watching %d trace file(s)", len(paths))
	for event := range fw.Events() {
		util.LogDebugf("change detected: %s (%s)", event.Path, event.Operation)
		coalesce(fw.Events(), 100*time.Millisecond)
		if err := analyzeOnce(paths, output); err != nil {
			// A partially written trace is expected mid-save; report
			// and wait for the next change.
			util.LogError("re-analysis failed: " + err.Error())
		}
	}
	return nil
}

// coalesce drains further change events for the given window, so one
// save that touches several watched files triggers one re-analysis.
func coalesce(events <-chan watcher.FileEvent, window time.Duration) {
	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-timer.C:
			return
		}
	}
}

func newFormatter(format string) (formatter.Formatter, error) {
	switch format {
	case "table":
		return formatter.NewTableFormatter(), nil
	case "json":
		return formatter.NewJSONFormatter(), nil
	case "csv":
		return formatter.NewCSVFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or csv)", format)
	}
}

func Execute() error {
	return rootCmd.Execute()
}
