// Package report renders queue state as plain text for the CLI.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ankitmehra/posd/internal/queue"
)

// FormatStats renders aggregate queue counters.
func FormatStats(stats queue.Stats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "pending:      %d\n", stats.Pending)
	fmt.Fprintf(&b, "in progress:  %d\n", stats.InProgress)
	fmt.Fprintf(&b, "failed:       %d\n", stats.Failed)
	fmt.Fprintf(&b, "dead letter:  %d\n", stats.DeadLetter)
	fmt.Fprintf(&b, "synced:       %d\n", stats.Synced)

	if stats.LastSyncedAt.IsZero() {
		b.WriteString("last synced:  never\n")
	} else {
		fmt.Fprintf(&b, "last synced:  %s\n", stats.LastSyncedAt.UTC().Format(time.RFC3339))
	}

	return b.String()
}

// FormatItems renders failed and dead-letter items, one block per item.
func FormatItems(items []queue.Item) string {
	if len(items) == 0 {
		return "no failed operations\n"
	}

	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "%s  %s  %s %s/%s  retries=%d\n",
			item.OperationID,
			item.State,
			item.OperationType,
			item.Collection,
			item.DocumentID,
			item.RetryCount,
		)
		if item.LastError != "" {
			fmt.Fprintf(&b, "    last error: %s\n", item.LastError)
		}
		if item.State == queue.StateFailed && !item.NextEligibleAt.IsZero() {
			fmt.Fprintf(&b, "    next retry: %s\n", item.NextEligibleAt.UTC().Format(time.RFC3339))
		}
	}
	return b.String()
}
