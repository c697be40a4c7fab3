// Package sync provides the synchronization engine between the local store
// and the sync backend: a durable outbox drained by a push loop, and a
// cursor-based pull loop that absorbs remote changes.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/ankitmehra/posd/internal/api"
	"github.com/ankitmehra/posd/internal/logger"
	"github.com/ankitmehra/posd/internal/queue"
)

// Config carries the engine's tuning knobs. Zero values fall back to
// defaults in NewEngine.
type Config struct {
	TenantID       string
	MaxBatchSize   int
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	PullInterval   time.Duration
	RequestTimeout time.Duration
	// IdlePoll bounds how long the push loop sleeps when the queue is empty
	// and no retry deadline is known. The watch channel normally wakes the
	// loop much sooner.
	IdlePoll time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 50
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Minute
	}
	if c.PullInterval <= 0 {
		c.PullInterval = time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = 30 * time.Second
	}
}

// Engine owns the queue from item creation to terminal state. It runs two
// independently scheduled loops: push (drains pending items) and pull
// (fetches remote changes since the stored cursor).
type Engine struct {
	repo      Repository
	transport Transport
	resolver  ConflictResolver
	cfg       Config

	mu      gosync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	wg      gosync.WaitGroup
}

// NewEngine creates a sync engine. The default conflict resolver is
// LastWriterWins; replace it with SetConflictResolver before Start.
func NewEngine(repo Repository, transport Transport, cfg Config) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	cfg.applyDefaults()

	return &Engine{
		repo:      repo,
		transport: transport,
		resolver:  LastWriterWins{},
		cfg:       cfg,
		stopCh:    make(chan struct{}),
	}, nil
}

// SetConflictResolver replaces the conflict strategy. Must be called before
// Start.
func (e *Engine) SetConflictResolver(r ConflictResolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r != nil && !e.started {
		e.resolver = r
	}
}

// Start recovers interrupted attempts and launches the push and pull loops.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}
	if e.stopped {
		return fmt.Errorf("engine already stopped")
	}

	// Items left in_progress by a previous process have an unknown outcome;
	// route them back through the retry path instead of leaving them stuck.
	n, err := e.repo.RecoverInFlight(e.cfg.TenantID, "interrupted: outcome unknown", time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to recover in-flight items: %w", err)
	}
	if n > 0 {
		logger.Info("sync: recovered %d interrupted operations", n)
	}

	e.started = true
	e.wg.Add(2)
	go e.pushLoop()
	go e.pullLoop()

	logger.Debug("sync: engine started for tenant %s", e.cfg.TenantID)
	return nil
}

// Stop halts both loops and waits for in-flight cycles to finish. Queue
// state is left intact for resumption on next start.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	logger.Debug("sync: engine stopped")
}

// Stats returns aggregate queue counters for the engine's tenant.
func (e *Engine) Stats() (queue.Stats, error) {
	return e.repo.GetStats(e.cfg.TenantID)
}

// FailedItems returns failed and dead-letter items for operator inspection.
func (e *Engine) FailedItems() ([]queue.Item, error) {
	return e.repo.GetFailedItems(e.cfg.TenantID)
}

// RetryDeadLetter is the manual user action on a dead-letter item: back to
// pending with a fresh retry budget.
func (e *Engine) RetryDeadLetter(operationID string) error {
	return e.repo.RetryDeadLetter(operationID)
}

// Flush drains the queue until no more items are eligible. Used on shutdown
// so a clean exit leaves nothing deliverable behind. Items waiting out a
// backoff delay are not forced.
func (e *Engine) Flush() error {
	for {
		worked, err := e.drainOnce()
		if err != nil {
			return err
		}
		if !worked {
			return nil
		}
	}
}

// pushLoop drains pending items continuously, idling on the watch channel
// when the queue is empty.
func (e *Engine) pushLoop() {
	defer e.wg.Done()

	watch, cancel := e.repo.WatchPending(e.cfg.TenantID)
	defer cancel()

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		worked, err := e.drainOnce()
		if err != nil {
			// Local storage failures are fatal for this cycle only; retry
			// on the next tick rather than hot-looping on a broken store.
			logger.Error("sync: push cycle failed: %v", err)
		}
		if worked && err == nil {
			continue
		}

		timer := time.NewTimer(e.idleDelay())
		select {
		case <-e.stopCh:
			timer.Stop()
			return
		case <-watch:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// idleDelay returns how long the push loop may sleep: until the earliest
// retry deadline if one exists, bounded by IdlePoll.
func (e *Engine) idleDelay() time.Duration {
	at, ok, err := e.repo.EarliestRetryAt(e.cfg.TenantID)
	if err != nil {
		logger.Warn("sync: failed to query earliest retry: %v", err)
		return e.cfg.IdlePoll
	}
	if !ok {
		return e.cfg.IdlePoll
	}

	d := time.Until(at)
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	if d > e.cfg.IdlePoll {
		d = e.cfg.IdlePoll
	}
	return d
}

// drainOnce runs one push cycle: requeue eligible failures, claim a batch
// of pending items, push it, and resolve every claimed item to a new state.
// Returns whether any items were processed.
func (e *Engine) drainOnce() (bool, error) {
	now := time.Now().UTC()

	if _, err := e.repo.RequeueEligible(e.cfg.TenantID, now); err != nil {
		return false, fmt.Errorf("failed to requeue eligible items: %w", err)
	}

	items, err := e.repo.GetPendingItems(e.cfg.TenantID, e.cfg.MaxBatchSize, now)
	if err != nil {
		return false, fmt.Errorf("failed to get pending items: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}

	// Claim each item. The pending->in_progress transition acts as a lock:
	// losing a claim means a concurrent drain got there first.
	claimed := make([]queue.Item, 0, len(items))
	for _, item := range items {
		if err := e.repo.MarkInProgress(item.OperationID); err != nil {
			logger.Warn("sync: skipping operation %s: %v", item.OperationID, err)
			continue
		}
		claimed = append(claimed, item)
	}
	if len(claimed) == 0 {
		return false, nil
	}

	logger.Debug("sync: pushing batch of %d operations", len(claimed))

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RequestTimeout)
	defer cancel()

	resp, err := e.transport.Push(ctx, api.NewPushRequest(e.cfg.TenantID, claimed))
	if err != nil {
		e.resolveBatchFailure(claimed, err)
		return true, nil
	}

	rejected := make(map[string]string)
	for _, r := range resp.Results {
		if r.Status == api.StatusRejected {
			rejected[r.OperationID] = r.Error
		}
	}

	for _, item := range claimed {
		if reason, ok := rejected[item.OperationID]; ok {
			// Server-side validation failure: retrying cannot succeed.
			logger.Warn("sync: operation %s rejected by server: %s", item.OperationID, reason)
			if err := e.repo.MoveToDeadLetter(item.OperationID, reason); err != nil {
				logger.Error("sync: failed to dead-letter %s: %v", item.OperationID, err)
			}
			continue
		}
		if err := e.repo.MarkSynced(item.OperationID); err != nil {
			logger.Error("sync: failed to mark %s synced: %v", item.OperationID, err)
		}
	}

	return true, nil
}

// resolveBatchFailure converts a batch-level push failure into per-item
// state transitions. Transient failures go to failed with backoff;
// non-retryable server rejections and exhausted retry budgets go to
// dead-letter.
func (e *Engine) resolveBatchFailure(items []queue.Item, pushErr error) {
	msg := pushErr.Error()

	var srvErr *api.ServerError
	if errors.As(pushErr, &srvErr) && !srvErr.Retryable() {
		logger.Warn("sync: batch rejected by server: %s", msg)
		for _, item := range items {
			if err := e.repo.MoveToDeadLetter(item.OperationID, msg); err != nil {
				logger.Error("sync: failed to dead-letter %s: %v", item.OperationID, err)
			}
		}
		return
	}

	logger.Warn("sync: push failed, will retry: %s", msg)
	for _, item := range items {
		if item.RetryCount >= e.cfg.MaxRetries {
			reason := fmt.Sprintf("retry budget exhausted after %d attempts: %s", item.RetryCount, msg)
			if err := e.repo.MoveToDeadLetter(item.OperationID, reason); err != nil {
				logger.Error("sync: failed to dead-letter %s: %v", item.OperationID, err)
			}
			continue
		}

		delay := withJitter(backoffDelay(e.cfg.BaseDelay, e.cfg.MaxDelay, item.RetryCount))
		if err := e.repo.MarkFailed(item.OperationID, msg, time.Now().UTC().Add(delay)); err != nil {
			logger.Error("sync: failed to mark %s failed: %v", item.OperationID, err)
		}
	}
}

// pullLoop fetches remote changes on a fixed interval, backing off on
// failure with the same policy as push.
func (e *Engine) pullLoop() {
	defer e.wg.Done()

	failures := 0
	for {
		wait := e.cfg.PullInterval
		if err := e.pullOnce(); err != nil {
			failures++
			wait = withJitter(backoffDelay(e.cfg.BaseDelay, e.cfg.MaxDelay, failures-1))
			logger.Warn("sync: pull failed (attempt %d): %v", failures, err)
		} else {
			failures = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-e.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// pullOnce runs one pull cycle: fetch changes since the stored cursor,
// resolve conflicts against live queue items, and apply the survivors plus
// the new cursor atomically. On failure the cursor is left untouched.
func (e *Engine) pullOnce() error {
	cursor, err := e.repo.GetCursor(e.cfg.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RequestTimeout)
	defer cancel()

	resp, err := e.transport.Pull(ctx, api.PullRequest{TenantID: e.cfg.TenantID, Cursor: cursor})
	if err != nil {
		return err
	}

	toApply := make([]queue.RemoteChange, 0, len(resp.Changes))
	for _, change := range resp.Changes {
		local, err := e.repo.GetLiveItem(e.cfg.TenantID, change.Collection, change.DocumentID)
		if err != nil {
			return fmt.Errorf("failed to check for local conflict: %w", err)
		}
		if local != nil && e.resolver.Resolve(Conflict{Local: *local, Remote: change}) == KeepLocal {
			logger.Debug("sync: keeping local value for %s/%s", change.Collection, change.DocumentID)
			continue
		}
		toApply = append(toApply, change)
	}

	if err := e.repo.ApplyRemoteChanges(e.cfg.TenantID, toApply, resp.Cursor); err != nil {
		return fmt.Errorf("failed to apply remote changes: %w", err)
	}

	if len(resp.Changes) > 0 {
		logger.Debug("sync: applied %d remote changes, cursor now %q", len(toApply), resp.Cursor)
	}
	return nil
}
