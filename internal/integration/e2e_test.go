// Package integration exercises the full agent stack: a real SQLite store,
// the sync engine, and the HTTP client against a mock backend.
package integration

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ankitmehra/posd/internal/api"
	"github.com/ankitmehra/posd/internal/queue"
	"github.com/ankitmehra/posd/internal/store"
	"github.com/ankitmehra/posd/internal/sync"
)

const tenant = "shop-42"

func engineConfig() sync.Config {
	return sync.Config{
		TenantID:     tenant,
		MaxRetries:   10,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		PullInterval: 10 * time.Millisecond,
		IdlePoll:     20 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestFullSyncCycle walks a bill through its whole life: written locally,
// queued, pushed, acknowledged, and visible in the stats, while a remote
// product change arrives through the pull side.
func TestFullSyncCycle(t *testing.T) {
	db, err := store.InitDB(filepath.Join(t.TempDir(), "posd.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	server := api.NewMockServer()
	defer server.Close()

	server.SetPullResponse("", api.PullResponse{
		Changes: []queue.RemoteChange{
			{Collection: "products", DocumentID: "prod-1", Payload: json.RawMessage(`{"name":"Sugar","price":45}`), Version: "v1"},
		},
		Cursor: "c1",
	})

	client := api.New(server.URL, api.StaticToken("test-token"), 2*time.Second)
	engine, err := sync.NewEngine(db, client, engineConfig())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	// Local mutation: a new bill, written and queued atomically.
	payload := json.RawMessage(`{"total":499,"items":2}`)
	item := queue.New(tenant, queue.OpCreate, "bills", "bill-1", payload)
	doc := store.Document{Collection: "bills", DocumentID: "bill-1", Payload: payload}
	if err := db.SaveLocal(doc, item); err != nil {
		t.Fatalf("failed to save local mutation: %v", err)
	}

	if err := engine.Start(); err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	defer engine.Stop()

	waitFor(t, 3*time.Second, func() bool {
		got, err := db.GetItem(item.OperationID)
		return err == nil && got.State == queue.StateSynced
	}, "bill never synced")

	if server.AppliedOperation(item.OperationID) == nil {
		t.Error("bill operation never reached the backend")
	}

	bill, err := db.GetDocument("bills", "bill-1")
	if err != nil {
		t.Fatal(err)
	}
	if bill == nil || bill.SyncedAt.IsZero() {
		t.Error("bill document not stamped as synced")
	}

	waitFor(t, 3*time.Second, func() bool {
		doc, err := db.GetDocument("products", "prod-1")
		return err == nil && doc != nil
	}, "pulled product never landed")

	waitFor(t, 3*time.Second, func() bool {
		cursor, err := db.GetCursor(tenant)
		return err == nil && cursor == "c1"
	}, "cursor never advanced")

	stats, err := engine.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Synced != 1 || stats.Pending != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LastSyncedAt.IsZero() {
		t.Error("last synced timestamp never recorded")
	}
}

// TestOfflineThenRecovery queues mutations while the backend is unreachable,
// then verifies everything drains in order once connectivity returns.
func TestOfflineThenRecovery(t *testing.T) {
	db, err := store.InitDB(filepath.Join(t.TempDir(), "posd.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	server := api.NewMockServer()
	defer server.Close()
	server.FailPushes(5, 503, "backend unavailable")

	client := api.New(server.URL, api.StaticToken("test-token"), 2*time.Second)
	engine, err := sync.NewEngine(db, client, engineConfig())
	if err != nil {
		t.Fatal(err)
	}

	if err := engine.Start(); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	var ids []string
	for i := 0; i < 3; i++ {
		item := queue.New(tenant, queue.OpUpdate, "bills", "bill-1", json.RawMessage(`{"v":1}`))
		item.CreatedAt = item.CreatedAt.Add(time.Duration(i) * time.Millisecond)
		item.UpdatedAt = item.CreatedAt
		if err := db.Enqueue(item); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, item.OperationID)
	}

	waitFor(t, 5*time.Second, func() bool {
		for _, id := range ids {
			got, err := db.GetItem(id)
			if err != nil || got.State != queue.StateSynced {
				return false
			}
		}
		return true
	}, "queue never drained after recovery")

	order := server.AppliedOrder()
	if len(order) != len(ids) {
		t.Fatalf("applied %d operations, want %d", len(order), len(ids))
	}
	for i := range ids {
		if order[i] != ids[i] {
			t.Fatalf("applied order %v, want %v", order, ids)
		}
	}
}

// TestRestartResumesQueue verifies that queue state persists across a
// process restart: a store reopened on the same file drains what the
// previous run left behind.
func TestRestartResumesQueue(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "posd.db")

	server := api.NewMockServer()
	defer server.Close()
	client := api.New(server.URL, api.StaticToken("test-token"), 2*time.Second)

	// First run: queue a mutation and claim it, then stop without recording
	// an outcome.
	db1, err := store.InitDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	item := queue.New(tenant, queue.OpCreate, "bills", "bill-1", json.RawMessage(`{"total":499}`))
	if err := db1.Enqueue(item); err != nil {
		t.Fatal(err)
	}
	if err := db1.MarkInProgress(item.OperationID); err != nil {
		t.Fatal(err)
	}
	db1.Close()

	// Second run: the engine recovers the interrupted operation and
	// delivers it.
	db2, err := store.InitDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()

	engine, err := sync.NewEngine(db2, client, engineConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Start(); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	waitFor(t, 3*time.Second, func() bool {
		got, err := db2.GetItem(item.OperationID)
		return err == nil && got.State == queue.StateSynced
	}, "interrupted item never delivered after restart")

	if server.AppliedOperation(item.OperationID) == nil {
		t.Error("operation never reached the backend")
	}
}

// TestDeadLetterOperatorFlow exercises the operator path end to end: a
// rejected operation lands in the dead letter queue, shows up in the failed
// listing, and drains after a manual retry once the backend accepts it.
func TestDeadLetterOperatorFlow(t *testing.T) {
	db, err := store.InitDB(filepath.Join(t.TempDir(), "posd.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	server := api.NewMockServer()
	defer server.Close()
	server.FailPushes(1, 422, "price must be positive")

	client := api.New(server.URL, api.StaticToken("test-token"), 2*time.Second)
	engine, err := sync.NewEngine(db, client, engineConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Start(); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	item := queue.New(tenant, queue.OpCreate, "products", "prod-1", json.RawMessage(`{"price":-5}`))
	if err := db.Enqueue(item); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, func() bool {
		got, err := db.GetItem(item.OperationID)
		return err == nil && got.State == queue.StateDeadLetter
	}, "item never dead-lettered")

	failed, err := engine.FailedItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].OperationID != item.OperationID {
		t.Fatalf("failed listing = %+v", failed)
	}

	if err := engine.RetryDeadLetter(item.OperationID); err != nil {
		t.Fatalf("RetryDeadLetter failed: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		got, err := db.GetItem(item.OperationID)
		return err == nil && got.State == queue.StateSynced
	}, "item never synced after manual retry")
}
