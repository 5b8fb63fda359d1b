package status

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"warden.app/bot/internal/restriction"
)

const (
	header    = "**Restricted accounts**"
	emptyText = "**Restricted accounts**\nNone right now."
)

// Render produces the display text for the given restriction set at instant
// now. It is a pure function: identical inputs yield byte-identical output.
// Expired records are dropped, the rest are sorted by remaining duration
// descending with ties kept in input order.
func Render(records []restriction.Record, now time.Time) string {
	live := make([]restriction.Record, 0, len(records))
	for _, r := range records {
		if r.Active(now) {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return emptyText
	}

	sort.SliceStable(live, func(i, j int) bool {
		return live[i].Remaining(now) > live[j].Remaining(now)
	})

	var b strings.Builder
	b.WriteString(header)
	for _, r := range live {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%s — %s", r.Label, formatRemaining(r.Remaining(now)))
	}
	return b.String()
}

// formatRemaining renders a countdown with second resolution, e.g. "2m05s"
// or "1h02m03s".
func formatRemaining(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
