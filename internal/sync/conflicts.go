package sync

import (
	"github.com/ankitmehra/posd/internal/logger"
	"github.com/ankitmehra/posd/internal/queue"
)

// Conflict describes a pulled remote change that targets a document with an
// outstanding local mutation in the queue.
type Conflict struct {
	Local  queue.Item
	Remote queue.RemoteChange
}

// Decision is a conflict resolver's verdict.
type Decision int

const (
	// ApplyRemote applies the pulled value to the confirmed view. The
	// local queue item keeps draining regardless.
	ApplyRemote Decision = iota
	// KeepLocal skips applying the pulled value for this document.
	KeepLocal
)

// ConflictResolver decides what to do when a pulled change collides with a
// live queue item. Merge semantics for concurrent field-level edits are a
// domain concern, so the strategy is pluggable.
type ConflictResolver interface {
	Resolve(c Conflict) Decision
}

// LastWriterWins always applies the pulled value, on the grounds that the
// server version is the most recent confirmed truth. The outbox continues
// draining independently; the server merges or rejects the local mutation
// on push.
type LastWriterWins struct{}

// Resolve implements ConflictResolver.
func (LastWriterWins) Resolve(c Conflict) Decision {
	logger.Debug("sync: conflict on %s/%s (local op %s in state %s, remote version %s), applying remote",
		c.Remote.Collection, c.Remote.DocumentID, c.Local.OperationID, c.Local.State, c.Remote.Version)
	return ApplyRemote
}
