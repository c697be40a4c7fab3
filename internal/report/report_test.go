package report

import (
	"strings"
	"testing"
	"time"

	"github.com/ankitmehra/posd/internal/queue"
)

func TestFormatStats(t *testing.T) {
	stats := queue.Stats{
		Pending:      3,
		InProgress:   1,
		Failed:       2,
		DeadLetter:   1,
		Synced:       40,
		LastSyncedAt: time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC),
	}

	out := FormatStats(stats)

	for _, want := range []string{
		"pending:      3",
		"in progress:  1",
		"failed:       2",
		"dead letter:  1",
		"synced:       40",
		"2026-08-20T14:30:00Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatStats_NeverSynced(t *testing.T) {
	out := FormatStats(queue.Stats{})
	if !strings.Contains(out, "last synced:  never") {
		t.Errorf("output missing never marker:\n%s", out)
	}
}

func TestFormatItems_Empty(t *testing.T) {
	if got := FormatItems(nil); got != "no failed operations\n" {
		t.Errorf("FormatItems(nil) = %q", got)
	}
}

func TestFormatItems(t *testing.T) {
	retryAt := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)
	items := []queue.Item{
		{
			OperationID:    "op-1",
			OperationType:  queue.OpCreate,
			Collection:     "bills",
			DocumentID:     "bill-1",
			State:          queue.StateFailed,
			RetryCount:     2,
			LastError:      "network error: connection refused",
			NextEligibleAt: retryAt,
		},
		{
			OperationID:   "op-2",
			OperationType: queue.OpUpdate,
			Collection:    "products",
			DocumentID:    "prod-9",
			State:         queue.StateDeadLetter,
			RetryCount:    5,
			LastError:     "missing required field: total",
		},
	}

	out := FormatItems(items)

	for _, want := range []string{
		"op-1",
		"failed",
		"create bills/bill-1",
		"retries=2",
		"last error: network error: connection refused",
		"next retry: 2026-08-20T15:00:00Z",
		"op-2",
		"dead_letter",
		"update products/prod-9",
		"last error: missing required field: total",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// Dead-letter items have no retry schedule to show.
	if strings.Count(out, "next retry:") != 1 {
		t.Errorf("expected exactly one next retry line:\n%s", out)
	}
}
