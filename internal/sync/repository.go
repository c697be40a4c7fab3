package sync

import (
	"context"
	"time"

	"github.com/ankitmehra/posd/internal/api"
	"github.com/ankitmehra/posd/internal/queue"
)

// Repository is the persistence surface the engine drives. *store.DB
// implements it; tests substitute fakes.
type Repository interface {
	// Drain side.
	GetPendingItems(tenantID string, limit int, now time.Time) ([]queue.Item, error)
	RequeueEligible(tenantID string, now time.Time) (int, error)
	EarliestRetryAt(tenantID string) (time.Time, bool, error)
	MarkInProgress(operationID string) error
	MarkSynced(operationID string) error
	MarkFailed(operationID, lastError string, nextEligibleAt time.Time) error
	MoveToDeadLetter(operationID, reason string) error
	RecoverInFlight(tenantID, reason string, now time.Time) (int, error)
	RetryDeadLetter(operationID string) error
	WatchPending(tenantID string) (<-chan struct{}, func())

	// Inspection.
	GetLiveItem(tenantID, collection, documentID string) (*queue.Item, error)
	GetFailedItems(tenantID string) ([]queue.Item, error)
	GetStats(tenantID string) (queue.Stats, error)

	// Pull side.
	GetCursor(tenantID string) (string, error)
	ApplyRemoteChanges(tenantID string, changes []queue.RemoteChange, cursor string) error
}

// Transport is the backend surface the engine drives. *api.Client implements
// it; tests substitute the mock server or fakes.
type Transport interface {
	Push(ctx context.Context, req api.PushRequest) (*api.PushResponse, error)
	Pull(ctx context.Context, req api.PullRequest) (*api.PullResponse, error)
}
