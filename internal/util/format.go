package util

import (
	"fmt"
)

// FormatNumber renders a count compactly: 950, 1.2K, 3.4M.
func FormatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// FormatMilliseconds renders a millisecond duration with a unit scaled
// to its magnitude.
func FormatMilliseconds(ms float64) string {
	switch abs := absFloat(ms); {
	case abs >= 1000:
		return fmt.Sprintf("%.3f s", ms/1000)
	case abs >= 1:
		return fmt.Sprintf("%.3f ms", ms)
	case abs == 0:
		return "0 ms"
	default:
		return fmt.Sprintf("%.3f µs", ms*1000)
	}
}

// FormatTimeRange renders a [min, max] millisecond range.
func FormatTimeRange(min, max float64) string {
	return fmt.Sprintf("%s .. %s", FormatMilliseconds(min), FormatMilliseconds(max))
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
