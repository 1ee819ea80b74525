package util

import (
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// DefaultTerminalWidth is used when the output is not a terminal.
const DefaultTerminalWidth = 120

// GetDisplayWidth calculates the actual display width of a string,
// accounting for wide runes.
func GetDisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// PadString pads text with spaces on the right up to the given display
// width. Text already at or past the width is returned unchanged.
func PadString(text string, width int) string {
	pad := width - GetDisplayWidth(text)
	if pad <= 0 {
		return text
	}
	return text + strings.Repeat(" ", pad)
}

// TruncateString shortens text to fit the given display width, ending
// with an ellipsis when anything was cut.
func TruncateString(text string, width int) string {
	if GetDisplayWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

// TerminalWidth returns the current width of stdout, or
// DefaultTerminalWidth when stdout is not a terminal.
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return DefaultTerminalWidth
}
