// Package queue defines the durable mutation record and its state machine.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of a queue item.
type State string

const (
	// StatePending means the item is waiting to be pushed.
	StatePending State = "pending"
	// StateInProgress means exactly one push attempt is in flight.
	StateInProgress State = "in_progress"
	// StateSynced is terminal: the server acknowledged the operation.
	StateSynced State = "synced"
	// StateFailed means the last attempt failed; the item becomes pending
	// again once its backoff delay has elapsed.
	StateFailed State = "failed"
	// StateDeadLetter is terminal barring an explicit manual retry.
	StateDeadLetter State = "dead_letter"
)

// Op represents the kind of mutation an item carries.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Item is one intended mutation against the backend. The payload is opaque
// to the sync engine; only the server interprets it.
type Item struct {
	OperationID    string
	TenantID       string
	OperationType  Op
	Collection     string
	DocumentID     string
	Payload        json.RawMessage
	State          State
	RetryCount     int
	LastError      string
	NextEligibleAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New creates a pending item with a fresh operation id. The operation id is
// the idempotency key for the server and never changes across retries.
func New(tenantID string, op Op, collection, documentID string, payload json.RawMessage) Item {
	now := time.Now().UTC()
	return Item{
		OperationID:   uuid.NewString(),
		TenantID:      tenantID,
		OperationType: op,
		Collection:    collection,
		DocumentID:    documentID,
		Payload:       payload,
		State:         StatePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// transitions lists the legal state changes. Items never move backward
// except failed->pending (backoff elapsed) and dead_letter->pending
// (manual retry).
var transitions = map[State][]State{
	StatePending:    {StateInProgress},
	StateInProgress: {StateSynced, StateFailed, StateDeadLetter},
	StateFailed:     {StatePending, StateDeadLetter},
	StateDeadLetter: {StatePending},
	StateSynced:     {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a state admits no automatic transitions.
func (s State) Terminal() bool {
	return s == StateSynced || s == StateDeadLetter
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateInProgress, StateSynced, StateFailed, StateDeadLetter:
		return true
	}
	return false
}

// RemoteChange is one document change pulled from the backend. Deleted
// changes remove the document from the confirmed view; the backend uses a
// soft-delete flag rather than dropping rows.
type RemoteChange struct {
	Collection string          `json:"collection"`
	DocumentID string          `json:"documentId"`
	Payload    json.RawMessage `json:"payload"`
	Version    string          `json:"version"`
	Deleted    bool            `json:"deleted,omitempty"`
}

// Stats holds aggregate queue counters, derived from the queue table and
// never stored authoritatively.
type Stats struct {
	Pending      int
	InProgress   int
	Failed       int
	DeadLetter   int
	Synced       int
	LastSyncedAt time.Time
}
