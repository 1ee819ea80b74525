package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceboard/traceboard/internal/presentation/formatter"
)

func TestNewFormatter(t *testing.T) {
	for _, format := range []string{"table", "json", "csv"} {
		f, err := newFormatter(format)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}

	_, err := newFormatter("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"xml"`)
}

func TestAnalyzeOnce(t *testing.T) {
	dir := t.TempDir()
	trace := filepath.Join(dir, "app.json")
	content := `[
		{"ph":"B","pid":1,"tid":1,"ts":1000,"name":"frame"},
		{"ph":"E","pid":1,"tid":1,"ts":3000}
	]`
	require.NoError(t, os.WriteFile(trace, []byte(content), 0644))

	require.NoError(t, analyzeOnce([]string{trace}, formatter.NewJSONFormatter()))
}

func TestAnalyzeOnceMissingFile(t *testing.T) {
	err := analyzeOnce([]string{"/nonexistent.trace"}, formatter.NewJSONFormatter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read trace")
}
