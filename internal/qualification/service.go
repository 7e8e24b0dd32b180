package qualification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rleiva/taxqual/cache"
	"github.com/rleiva/taxqual/internal/bus"
)

// ViewSink receives the current derived view and stats, read-only. The
// chat-assistant context implements it; it gets no mutation rights.
type ViewSink interface {
	PublishView(rows []Record, total int)
	PublishStats(stats Stats)
}

// assistantRowCap bounds what gets pushed to the sink regardless of how
// large the filtered result is.
const assistantRowCap = 100

// Service ties the data layer together: a cache subscription per owner
// over the remote collection, per-session workspaces deriving views from
// it, and the deletion coordinator whose signals invalidate the cache.
type Service struct {
	cache    *cache.Store
	bus      *bus.Bus
	ds       DataSource
	coord    *Coordinator
	sink     ViewSink
	ttl      time.Duration
	pageSize int
	log      zerolog.Logger

	mu         sync.Mutex
	subs       map[uuid.UUID]*cache.Subscription[[]Record]
	workspaces map[string]*Workspace
	lastView   string
}

// NewService wires the service and subscribes its cache-invalidation
// listeners on the bus: a records-changed signal drops every cached
// collection and clears every session's selection, a stats-changed signal
// drops the cached aggregates.
func NewService(store *cache.Store, b *bus.Bus, ds DataSource, audit AuditLog, sink ViewSink, ttl time.Duration, pageSize int, log zerolog.Logger) *Service {
	s := &Service{
		cache:      store,
		bus:        b,
		ds:         ds,
		coord:      NewCoordinator(ds, audit, b, log),
		sink:       sink,
		ttl:        ttl,
		pageSize:   pageSize,
		log:        log,
		subs:       make(map[uuid.UUID]*cache.Subscription[[]Record]),
		workspaces: make(map[string]*Workspace),
	}
	b.Subscribe(SignalRecordsChanged, s.onRecordsChanged)
	b.Subscribe(SignalStatsChanged, s.onStatsChanged)
	return s
}

func recordsKey(ownerID uuid.UUID) string { return "qualifications:" + ownerID.String() }
func statsKey(ownerID uuid.UUID) string   { return "stats:" + ownerID.String() }

// subscription returns the owner's collection binding, creating it on
// first use. Independent owners cache under independent keys.
func (s *Service) subscription(ownerID uuid.UUID) *cache.Subscription[[]Record] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[ownerID]
	if !ok {
		sub = cache.Subscribe(s.cache, recordsKey(ownerID), s.ttl, func(ctx context.Context) ([]Record, error) {
			return s.ds.ListByOwner(ctx, ownerID)
		})
		s.subs[ownerID] = sub
	}
	return sub
}

// Records returns the owner's raw collection, served from cache while
// fresh.
func (s *Service) Records(ctx context.Context, ownerID uuid.UUID) ([]Record, error) {
	return s.subscription(ownerID).Get(ctx)
}

// Snapshot exposes the owner's {data, loading, error} cache state.
func (s *Service) Snapshot(ownerID uuid.UUID) cache.Snapshot[[]Record] {
	return s.subscription(ownerID).Snapshot()
}

// Workspace returns the view state for a session token, creating it on
// first use.
func (s *Service) Workspace(token string) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[token]
	if !ok {
		ws = NewWorkspace(s.pageSize)
		s.workspaces[token] = ws
	}
	return ws
}

// View fetches the owner's collection and derives the session's view,
// pushing the capped pre-pagination result to the sink when it changed.
func (s *Service) View(ctx context.Context, ownerID uuid.UUID, token string) (View, error) {
	records, err := s.Records(ctx, ownerID)
	if err != nil {
		return View{}, err
	}
	view := s.Workspace(token).Derive(records)
	s.publishView(view)
	return view, nil
}

// SelectAll replaces the session's selection with the ids of its current
// filtered+sorted view.
func (s *Service) SelectAll(ctx context.Context, ownerID uuid.UUID, token string) error {
	records, err := s.Records(ctx, ownerID)
	if err != nil {
		return err
	}
	s.Workspace(token).SelectAll(records)
	return nil
}

// Stats returns the owner's aggregates, cached under their own key and
// invalidated by the stats-changed signal.
func (s *Service) Stats(ctx context.Context, ownerID uuid.UUID) (Stats, error) {
	value, err := s.cache.Fetch(ctx, statsKey(ownerID), s.ttl, func(ctx context.Context) (any, error) {
		records, err := s.Records(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return ComputeStats(records), nil
	})
	if err != nil {
		return Stats{}, err
	}
	stats, _ := value.(Stats)
	s.sink.PublishStats(stats)
	return stats, nil
}

// RequestDelete stages a single-record deletion for confirmation.
func (s *Service) RequestDelete(id uuid.UUID) error {
	return s.coord.RequestDelete(id)
}

// RequestDeleteSelected stages the session's whole selection.
func (s *Service) RequestDeleteSelected(token string) error {
	return s.coord.RequestDeleteSelected(s.Workspace(token).SelectedIDs())
}

// CancelDelete abandons the staged request.
func (s *Service) CancelDelete() error {
	return s.coord.Cancel()
}

// DeletePhase exposes the coordinator state machine.
func (s *Service) DeletePhase() Phase {
	return s.coord.Phase()
}

// ConfirmDelete executes the staged request against the owner's locally
// held collection. The coordinator's signals then invalidate the cache
// and clear selections, so the next read refetches.
func (s *Service) ConfirmDelete(ctx context.Context, ownerID uuid.UUID, actor Actor) Result {
	records, err := s.Records(ctx, ownerID)
	if err != nil {
		s.log.Error().Err(err).Msg("confirm aborted: collection fetch failed")
		return Result{Err: ErrMutationFailed}
	}
	return s.coord.Confirm(ctx, actor, records)
}

// Invalidate removes the given cache keys; with none given it drops every
// known collection key. Exposed for components writing outside the
// pipeline.
func (s *Service) Invalidate(keys ...string) {
	if len(keys) == 0 {
		s.onRecordsChanged()
		s.onStatsChanged()
		return
	}
	s.cache.Invalidate(keys...)
}

// ClearCache removes every cache entry.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// onRecordsChanged drops every cached collection and clears every
// session's selection: ids may no longer exist after the refetch.
func (s *Service) onRecordsChanged() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.subs))
	for ownerID := range s.subs {
		keys = append(keys, recordsKey(ownerID))
	}
	workspaces := make([]*Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		workspaces = append(workspaces, ws)
	}
	s.mu.Unlock()

	if len(keys) > 0 {
		s.cache.Invalidate(keys...)
	}
	for _, ws := range workspaces {
		ws.ClearSelection()
	}
}

func (s *Service) onStatsChanged() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.subs))
	for ownerID := range s.subs {
		keys = append(keys, statsKey(ownerID))
	}
	s.mu.Unlock()
	if len(keys) > 0 {
		s.cache.Invalidate(keys...)
	}
}

// publishView pushes the filtered+sorted result to the sink, capped, and
// only when it differs from the last published one.
func (s *Service) publishView(view View) {
	rows := view.Matched
	if len(rows) > assistantRowCap {
		rows = rows[:assistantRowCap]
	}

	var b strings.Builder
	for _, r := range rows {
		b.WriteString(r.ID.String())
		b.WriteByte(';')
	}
	fingerprint := b.String()

	s.mu.Lock()
	changed := fingerprint != s.lastView
	if changed {
		s.lastView = fingerprint
	}
	s.mu.Unlock()

	if changed {
		s.sink.PublishView(rows, view.Total)
	}
}
