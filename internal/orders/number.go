package orders

import (
	"fmt"
	"time"
)

// Order numbers look like ORD-20250831-143502-001: date and time of
// placement down to the second, then a per-second sequence. The sequence
// is derived inside the same transaction as the insert and backed by a
// unique index, so two orders placed in the same second cannot end up
// with the same number even under concurrent load.

func orderNumberPrefix(t time.Time) string {
	return "ORD-" + t.UTC().Format("20060102-150405")
}

func formatOrderNumber(t time.Time, seq int) string {
	return fmt.Sprintf("%s-%03d", orderNumberPrefix(t), seq)
}
