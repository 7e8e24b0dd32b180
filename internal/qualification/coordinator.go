package qualification

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rleiva/taxqual/internal/bus"
)

// DataSource is the remote store holding the qualification collection.
type DataSource interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditLog records one append-only entry per successfully deleted record.
type AuditLog interface {
	RecordDeletion(ctx context.Context, actor Actor, entityID uuid.UUID, snapshot Record) error
}

// Phase of the deletion state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConfirming
	PhaseExecuting
)

var (
	// ErrDeletePending is returned when a delete request arrives while
	// another one awaits confirmation or is executing.
	ErrDeletePending = errors.New("a delete request is already pending")
	// ErrNothingPending is returned by Confirm or Cancel with no active
	// request.
	ErrNothingPending = errors.New("no delete request is pending")
	// ErrMutationFailed is the only error callers see from a failed run.
	// The root cause goes to the diagnostic log, not to the caller.
	ErrMutationFailed = errors.New("could not delete the requested qualifications")
)

// Result is the typed outcome of one coordinator run. The remote store
// has no multi-record atomicity, so a failed run still reports which ids
// were deleted (and audited) before the abort and which were never
// attempted.
type Result struct {
	Succeeded []uuid.UUID
	Failed    *uuid.UUID
	Remaining []uuid.UUID
	Err       error
}

// Coordinator drives single and bulk deletion: confirm, then delete and
// audit each record sequentially, failing fast on the first error.
// Exactly one request — a single target or a whole selection — is active
// at a time.
type Coordinator struct {
	ds    DataSource
	audit AuditLog
	bus   *bus.Bus
	log   zerolog.Logger

	mu      sync.Mutex
	phase   Phase
	target  *uuid.UUID
	pending []uuid.UUID
}

// NewCoordinator wires the coordinator to its collaborators. Signals go
// out on b after every run, success or abort.
func NewCoordinator(ds DataSource, audit AuditLog, b *bus.Bus, log zerolog.Logger) *Coordinator {
	return &Coordinator{ds: ds, audit: audit, bus: b, log: log}
}

// Phase returns the current state-machine phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// RequestDelete enters Confirming for a single record.
func (c *Coordinator) RequestDelete(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseIdle {
		return ErrDeletePending
	}
	c.phase = PhaseConfirming
	c.target = &id
	c.pending = nil
	return nil
}

// RequestDeleteSelected enters Confirming for the given selection. The
// ids are resolved now; later selection changes do not affect the run.
func (c *Coordinator) RequestDeleteSelected(ids []uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseIdle {
		return ErrDeletePending
	}
	c.phase = PhaseConfirming
	c.target = nil
	c.pending = append([]uuid.UUID(nil), ids...)
	return nil
}

// Cancel abandons a pending request and returns to Idle.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseConfirming {
		return ErrNothingPending
	}
	c.reset()
	return nil
}

// Confirm executes the pending request. records is the locally held raw
// collection; an id without a matching record is skipped silently rather
// than failing the batch for something already gone. Deletes run strictly
// in sequence, each followed by its audit write, and the first error
// aborts the rest. Whatever the outcome, both change signals are
// published, the pending state is cleared and the phase returns to Idle.
func (c *Coordinator) Confirm(ctx context.Context, actor Actor, records []Record) Result {
	c.mu.Lock()
	if c.phase != PhaseConfirming {
		c.mu.Unlock()
		return Result{Err: ErrNothingPending}
	}
	c.phase = PhaseExecuting
	var ids []uuid.UUID
	if c.target != nil {
		ids = []uuid.UUID{*c.target}
	} else {
		ids = append([]uuid.UUID(nil), c.pending...)
	}
	c.mu.Unlock()

	// Deterministic order: the audit log then reads in deletion order.
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	byID := make(map[uuid.UUID]Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	result := c.run(ctx, actor, ids, byID)

	c.mu.Lock()
	c.reset()
	c.mu.Unlock()

	c.bus.Publish(SignalRecordsChanged)
	c.bus.Publish(SignalStatsChanged)
	return result
}

func (c *Coordinator) run(ctx context.Context, actor Actor, ids []uuid.UUID, byID map[uuid.UUID]Record) Result {
	var result Result
	for i, id := range ids {
		record, ok := byID[id]
		if !ok {
			// Disappeared between fetch and confirm; nothing to do.
			c.log.Debug().Stringer("id", id).Msg("skipping delete of unknown qualification")
			continue
		}
		if err := c.ds.Delete(ctx, id); err != nil {
			c.log.Error().Err(err).Stringer("id", id).Msg("remote delete failed")
			return c.abort(result, ids, i)
		}
		if err := c.audit.RecordDeletion(ctx, actor, id, record); err != nil {
			// The record is gone remotely but unaudited; surface the run
			// as failed so the operator re-checks.
			c.log.Error().Err(err).Stringer("id", id).Msg("audit write failed after delete")
			return c.abort(result, ids, i)
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

func (c *Coordinator) abort(result Result, ids []uuid.UUID, at int) Result {
	failed := ids[at]
	result.Failed = &failed
	result.Remaining = append([]uuid.UUID(nil), ids[at+1:]...)
	result.Err = ErrMutationFailed
	return result
}

func (c *Coordinator) reset() {
	c.phase = PhaseIdle
	c.target = nil
	c.pending = nil
}
