package raids

import (
	"fmt"
	"strings"
	"time"
)

// FormatCountdown renders a remaining duration as "3h 12m" the way the
// announce messages do. Sub-minute remainders round down; a window
// about to flip shows "0h 0m".
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

// FormatUTC renders an absolute window bound for chat output.
func FormatUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// Title renders a normalized boss name for display ("queenant" ->
// "Queenant"). Names are stored fully folded, so this only restores a
// leading capital.
func Title(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
