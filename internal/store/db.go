// Package store provides SQLite-based persistence for the sync queue,
// the confirmed document view, and the pull cursor.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ankitmehra/posd/internal/queue"
)

// ErrNotPending is returned by MarkInProgress when the item was not in the
// pending state, typically because a concurrent drain claimed it first.
var ErrNotPending = fmt.Errorf("item is not pending")

// ErrNotFound is returned when no queue item exists for an operation id.
var ErrNotFound = fmt.Errorf("queue item not found")

// DB represents a SQLite database holding the sync queue and local state.
type DB struct {
	path string
	conn *sql.DB

	watch *watchHub
}

// Document is a row in the confirmed view: the latest server-acknowledged
// value for one remote document.
type Document struct {
	Collection    string
	DocumentID    string
	Payload       json.RawMessage
	ServerVersion string
	SyncedAt      time.Time
}

// createQueueTableSQL defines the schema for the sync queue.
const createQueueTableSQL = `
CREATE TABLE IF NOT EXISTS sync_queue (
    operation_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    operation_type TEXT NOT NULL,
    collection TEXT NOT NULL,
    document_id TEXT NOT NULL,
    payload TEXT,
    state TEXT NOT NULL DEFAULT 'pending',
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    next_eligible_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// createQueueIndexSQL speeds up the drain query (tenant + state + FIFO order).
const createQueueIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_sync_queue_drain
ON sync_queue(tenant_id, state, created_at);
`

// createDocumentsTableSQL defines the confirmed document view.
const createDocumentsTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    document_id TEXT NOT NULL,
    payload TEXT,
    server_version TEXT,
    synced_at TEXT,
    UNIQUE(collection, document_id)
);
`

// createCursorTableSQL holds the pull cursor and last successful sync time
// per tenant.
const createCursorTableSQL = `
CREATE TABLE IF NOT EXISTS sync_cursor (
    tenant_id TEXT PRIMARY KEY,
    cursor TEXT,
    last_synced_at TEXT
);
`

// InitDB creates or opens a SQLite database at the given path and
// initializes the schema.
func InitDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer, so we limit to one connection
	// to prevent "database is locked" errors when the push loop, the pull
	// loop, and domain writers overlap.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		createQueueTableSQL,
		createQueueIndexSQL,
		createDocumentsTableSQL,
		createCursorTableSQL,
	} {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &DB{
		path:  path,
		conn:  conn,
		watch: newWatchHub(),
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Enqueue inserts a new queue item. The item must be in the pending state.
func (db *DB) Enqueue(item queue.Item) error {
	if item.State != queue.StatePending {
		return fmt.Errorf("cannot enqueue item in state %q", item.State)
	}
	if err := db.insertItem(db.conn, item); err != nil {
		return err
	}
	db.watch.notify(item.TenantID)
	return nil
}

// SaveLocal writes a domain document and its queue item in one transaction,
// so the mutation and its enqueue are atomic even if the process dies
// immediately after commit.
func (db *DB) SaveLocal(doc Document, item queue.Item) error {
	if item.State != queue.StatePending {
		return fmt.Errorf("cannot enqueue item in state %q", item.State)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertDocument(tx, doc); err != nil {
		return err
	}
	if err := db.insertItem(tx, item); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.watch.notify(item.TenantID)
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (db *DB) insertItem(e execer, item queue.Item) error {
	query := `
		INSERT INTO sync_queue (
			operation_id, tenant_id, operation_type, collection, document_id,
			payload, state, retry_count, last_error, next_eligible_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := e.Exec(query,
		item.OperationID,
		item.TenantID,
		string(item.OperationType),
		item.Collection,
		item.DocumentID,
		sql.NullString{String: string(item.Payload), Valid: len(item.Payload) > 0},
		string(item.State),
		item.RetryCount,
		sql.NullString{String: item.LastError, Valid: item.LastError != ""},
		nullTime(item.NextEligibleAt),
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
		item.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue item: %w", err)
	}
	return nil
}

func upsertDocument(e execer, doc Document) error {
	query := `
		INSERT OR REPLACE INTO documents (
			collection, document_id, payload, server_version, synced_at
		) VALUES (?, ?, ?, ?, ?)
	`

	_, err := e.Exec(query,
		doc.Collection,
		doc.DocumentID,
		sql.NullString{String: string(doc.Payload), Valid: len(doc.Payload) > 0},
		sql.NullString{String: doc.ServerVersion, Valid: doc.ServerVersion != ""},
		nullTime(doc.SyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// GetPendingItems returns pending items for a tenant whose backoff gate has
// passed, oldest first, limited to limit rows. A limit of 0 means no limit.
func (db *DB) GetPendingItems(tenantID string, limit int, now time.Time) ([]queue.Item, error) {
	query := `
		SELECT operation_id, tenant_id, operation_type, collection, document_id,
		       payload, state, retry_count, last_error, next_eligible_at,
		       created_at, updated_at
		FROM sync_queue
		WHERE tenant_id = ? AND state = 'pending'
		  AND (next_eligible_at IS NULL OR next_eligible_at <= ?)
		ORDER BY created_at ASC, operation_id ASC
	`
	args := []interface{}{tenantID, now.UTC().Format(time.RFC3339Nano)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// RequeueEligible flips failed items back to pending once their backoff
// delay has elapsed. Returns the number of items requeued.
func (db *DB) RequeueEligible(tenantID string, now time.Time) (int, error) {
	query := `
		UPDATE sync_queue
		SET state = 'pending', updated_at = ?
		WHERE tenant_id = ? AND state = 'failed'
		  AND (next_eligible_at IS NULL OR next_eligible_at <= ?)
	`

	ts := now.UTC().Format(time.RFC3339Nano)
	result, err := db.conn.Exec(query, ts, tenantID, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue eligible items: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		db.watch.notify(tenantID)
	}
	return int(n), nil
}

// EarliestRetryAt returns the earliest backoff deadline among failed items,
// so the push loop can sleep until something becomes eligible. The second
// return value is false when no failed items exist.
func (db *DB) EarliestRetryAt(tenantID string) (time.Time, bool, error) {
	query := `
		SELECT MIN(next_eligible_at)
		FROM sync_queue
		WHERE tenant_id = ? AND state = 'failed'
	`

	var ts sql.NullString
	if err := db.conn.QueryRow(query, tenantID).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query earliest retry: %w", err)
	}
	if !ts.Valid || ts.String == "" {
		return time.Time{}, false, nil
	}

	t, err := time.Parse(time.RFC3339Nano, ts.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse next_eligible_at: %w", err)
	}
	return t, true, nil
}

// MarkInProgress atomically transitions an item from pending to in_progress.
// The conditional WHERE clause is what excludes the double-drain race: of
// two concurrent callers, exactly one sees a row flip.
func (db *DB) MarkInProgress(operationID string) error {
	query := `
		UPDATE sync_queue
		SET state = 'in_progress', updated_at = ?
		WHERE operation_id = ? AND state = 'pending'
	`

	result, err := db.conn.Exec(query, time.Now().UTC().Format(time.RFC3339Nano), operationID)
	if err != nil {
		return fmt.Errorf("failed to mark in progress: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("operation %s: %w", operationID, ErrNotPending)
	}
	return nil
}

// MarkSynced transitions an item to the terminal synced state, clears its
// transient error fields, stamps the confirmed document row, and records
// the last successful sync time for the tenant.
func (db *DB) MarkSynced(operationID string) error {
	item, err := db.GetItem(operationID)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	result, err := tx.Exec(`
		UPDATE sync_queue
		SET state = 'synced', last_error = NULL, next_eligible_at = NULL, updated_at = ?
		WHERE operation_id = ? AND state = 'in_progress'
	`, now, operationID)
	if err != nil {
		return fmt.Errorf("failed to mark synced: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("operation %s is not in progress", operationID)
	}

	// Stamp the confirmed view so readers can tell the document has been
	// acknowledged by the server.
	if _, err := tx.Exec(`
		UPDATE documents SET synced_at = ?
		WHERE collection = ? AND document_id = ?
	`, now, item.Collection, item.DocumentID); err != nil {
		return fmt.Errorf("failed to stamp document: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO sync_cursor (tenant_id, cursor, last_synced_at)
		VALUES (?, NULL, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET last_synced_at = excluded.last_synced_at
	`, item.TenantID, now); err != nil {
		return fmt.Errorf("failed to record last sync time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkFailed transitions an in_progress item to failed, increments its
// retry count, and stores the backoff gate computed by the caller.
func (db *DB) MarkFailed(operationID, lastError string, nextEligibleAt time.Time) error {
	query := `
		UPDATE sync_queue
		SET state = 'failed',
		    retry_count = retry_count + 1,
		    last_error = ?,
		    next_eligible_at = ?,
		    updated_at = ?
		WHERE operation_id = ? AND state = 'in_progress'
	`

	result, err := db.conn.Exec(query,
		lastError,
		nextEligibleAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		operationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("operation %s is not in progress", operationID)
	}
	return nil
}

// MoveToDeadLetter transitions a failed or in_progress item to the terminal
// dead_letter state. The retry count is left untouched for diagnostics.
func (db *DB) MoveToDeadLetter(operationID, reason string) error {
	query := `
		UPDATE sync_queue
		SET state = 'dead_letter', last_error = ?, next_eligible_at = NULL, updated_at = ?
		WHERE operation_id = ? AND state IN ('failed', 'in_progress')
	`

	result, err := db.conn.Exec(query, reason, time.Now().UTC().Format(time.RFC3339Nano), operationID)
	if err != nil {
		return fmt.Errorf("failed to move to dead letter: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("operation %s is not failed or in progress", operationID)
	}
	return nil
}

// RetryDeadLetter is the manual user action: it moves a dead_letter item
// back to pending with a fresh retry budget.
func (db *DB) RetryDeadLetter(operationID string) error {
	query := `
		UPDATE sync_queue
		SET state = 'pending', retry_count = 0, last_error = NULL,
		    next_eligible_at = NULL, updated_at = ?
		WHERE operation_id = ? AND state = 'dead_letter'
	`

	result, err := db.conn.Exec(query, time.Now().UTC().Format(time.RFC3339Nano), operationID)
	if err != nil {
		return fmt.Errorf("failed to retry dead letter item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("operation %s is not in dead letter", operationID)
	}

	item, err := db.GetItem(operationID)
	if err == nil {
		db.watch.notify(item.TenantID)
	}
	return nil
}

// RecoverInFlight marks every in_progress item for a tenant as failed with
// an immediately eligible retry. Called at engine startup: an item left
// in_progress across a restart has an unknown outcome and must re-enter
// the retry path rather than stay stuck.
func (db *DB) RecoverInFlight(tenantID, reason string, now time.Time) (int, error) {
	query := `
		UPDATE sync_queue
		SET state = 'failed',
		    retry_count = retry_count + 1,
		    last_error = ?,
		    next_eligible_at = ?,
		    updated_at = ?
		WHERE tenant_id = ? AND state = 'in_progress'
	`

	ts := now.UTC().Format(time.RFC3339Nano)
	result, err := db.conn.Exec(query, reason, ts, ts, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to recover in-flight items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// GetItem retrieves a queue item by operation id.
func (db *DB) GetItem(operationID string) (*queue.Item, error) {
	query := `
		SELECT operation_id, tenant_id, operation_type, collection, document_id,
		       payload, state, retry_count, last_error, next_eligible_at,
		       created_at, updated_at
		FROM sync_queue
		WHERE operation_id = ?
	`

	row := db.conn.QueryRow(query, operationID)
	item, err := scanItemFrom(row)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("operation %s: %w", operationID, ErrNotFound)
	}
	return item, nil
}

// GetLiveItem returns the oldest non-terminal queue item targeting a
// document, or nil if the document has no outstanding local mutation.
// Used by the pull cycle for conflict detection.
func (db *DB) GetLiveItem(tenantID, collection, documentID string) (*queue.Item, error) {
	query := `
		SELECT operation_id, tenant_id, operation_type, collection, document_id,
		       payload, state, retry_count, last_error, next_eligible_at,
		       created_at, updated_at
		FROM sync_queue
		WHERE tenant_id = ? AND collection = ? AND document_id = ?
		  AND state IN ('pending', 'in_progress', 'failed')
		ORDER BY created_at ASC
		LIMIT 1
	`

	row := db.conn.QueryRow(query, tenantID, collection, documentID)
	return scanItemFrom(row)
}

// GetFailedItems returns all failed and dead_letter items for a tenant,
// oldest first, for operator visibility.
func (db *DB) GetFailedItems(tenantID string) ([]queue.Item, error) {
	query := `
		SELECT operation_id, tenant_id, operation_type, collection, document_id,
		       payload, state, retry_count, last_error, next_eligible_at,
		       created_at, updated_at
		FROM sync_queue
		WHERE tenant_id = ? AND state IN ('failed', 'dead_letter')
		ORDER BY created_at ASC
	`

	rows, err := db.conn.Query(query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// GetStats derives aggregate counters from the queue table.
func (db *DB) GetStats(tenantID string) (queue.Stats, error) {
	var stats queue.Stats

	rows, err := db.conn.Query(`
		SELECT state, COUNT(*) FROM sync_queue WHERE tenant_id = ? GROUP BY state
	`, tenantID)
	if err != nil {
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return stats, fmt.Errorf("failed to scan stats row: %w", err)
		}
		switch queue.State(state) {
		case queue.StatePending:
			stats.Pending = count
		case queue.StateInProgress:
			stats.InProgress = count
		case queue.StateFailed:
			stats.Failed = count
		case queue.StateDeadLetter:
			stats.DeadLetter = count
		case queue.StateSynced:
			stats.Synced = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating stats rows: %w", err)
	}

	var lastSynced sql.NullString
	err = db.conn.QueryRow(`
		SELECT last_synced_at FROM sync_cursor WHERE tenant_id = ?
	`, tenantID).Scan(&lastSynced)
	if err != nil && err != sql.ErrNoRows {
		return stats, fmt.Errorf("failed to query last sync time: %w", err)
	}
	if lastSynced.Valid && lastSynced.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, lastSynced.String); err == nil {
			stats.LastSyncedAt = t
		}
	}

	return stats, nil
}

// GetCursor returns the persisted pull cursor for a tenant, or "" for the
// first run.
func (db *DB) GetCursor(tenantID string) (string, error) {
	var cursor sql.NullString
	err := db.conn.QueryRow(`
		SELECT cursor FROM sync_cursor WHERE tenant_id = ?
	`, tenantID).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query cursor: %w", err)
	}
	return cursor.String, nil
}

// ApplyRemoteChanges applies pulled document changes to the confirmed view
// and advances the cursor in one transaction, so a crash cannot advance the
// cursor past unapplied changes.
func (db *DB) ApplyRemoteChanges(tenantID string, changes []queue.RemoteChange, cursor string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, c := range changes {
		if c.Deleted {
			if _, err := tx.Exec(`
				DELETE FROM documents WHERE collection = ? AND document_id = ?
			`, c.Collection, c.DocumentID); err != nil {
				return fmt.Errorf("failed to delete document %s/%s: %w", c.Collection, c.DocumentID, err)
			}
			continue
		}
		doc := Document{
			Collection:    c.Collection,
			DocumentID:    c.DocumentID,
			Payload:       c.Payload,
			ServerVersion: c.Version,
			SyncedAt:      now,
		}
		if err := upsertDocument(tx, doc); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO sync_cursor (tenant_id, cursor, last_synced_at)
		VALUES (?, ?, NULL)
		ON CONFLICT(tenant_id) DO UPDATE SET cursor = excluded.cursor
	`, tenantID, cursor); err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document from the confirmed view.
func (db *DB) GetDocument(collection, documentID string) (*Document, error) {
	query := `
		SELECT collection, document_id, payload, server_version, synced_at
		FROM documents
		WHERE collection = ? AND document_id = ?
	`

	var doc Document
	var payload, version, syncedAt sql.NullString
	err := db.conn.QueryRow(query, collection, documentID).Scan(
		&doc.Collection,
		&doc.DocumentID,
		&payload,
		&version,
		&syncedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	if payload.Valid {
		doc.Payload = json.RawMessage(payload.String)
	}
	doc.ServerVersion = version.String
	if syncedAt.Valid && syncedAt.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, syncedAt.String); err == nil {
			doc.SyncedAt = t
		}
	}

	return &doc, nil
}

// WatchPending subscribes to pending-set changes for a tenant. The returned
// channel receives a coalesced signal whenever items enter the pending set;
// the cancel function must be called to release the subscription.
func (db *DB) WatchPending(tenantID string) (<-chan struct{}, func()) {
	return db.watch.subscribe(tenantID)
}

// scanner is an interface that both *sql.Row and *sql.Rows implement.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanItemFrom scans a row into a queue.Item using the scanner interface.
// This handles both *sql.Row and *sql.Rows.
func scanItemFrom(s scanner) (*queue.Item, error) {
	var item queue.Item
	var opType, state string
	var payload, lastError, nextEligibleAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&item.OperationID,
		&item.TenantID,
		&opType,
		&item.Collection,
		&item.DocumentID,
		&payload,
		&state,
		&item.RetryCount,
		&lastError,
		&nextEligibleAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan queue item: %w", err)
	}

	item.OperationType = queue.Op(opType)
	item.State = queue.State(state)
	if payload.Valid {
		item.Payload = json.RawMessage(payload.String)
	}
	item.LastError = lastError.String

	if nextEligibleAt.Valid && nextEligibleAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, nextEligibleAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse next_eligible_at: %w", err)
		}
		item.NextEligibleAt = t
	}
	if item.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &item, nil
}

func scanItems(rows *sql.Rows) ([]queue.Item, error) {
	items := []queue.Item{}
	for rows.Next() {
		item, err := scanItemFrom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return items, nil
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}
