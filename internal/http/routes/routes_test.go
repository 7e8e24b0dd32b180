package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rleiva/taxqual/cache"
	"github.com/rleiva/taxqual/internal/assistant"
	"github.com/rleiva/taxqual/internal/bus"
	"github.com/rleiva/taxqual/internal/export"
	"github.com/rleiva/taxqual/internal/qualification"
)

type memorySource struct {
	mu      sync.Mutex
	records map[uuid.UUID]qualification.Record
	lists   int
}

func newMemorySource(records ...qualification.Record) *memorySource {
	byID := make(map[uuid.UUID]qualification.Record)
	for _, r := range records {
		byID[r.ID] = r
	}
	return &memorySource{records: byID}
}

func (m *memorySource) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]qualification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := make([]qualification.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *memorySource) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return errors.New("not found")
	}
	delete(m.records, id)
	return nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries int
}

func (m *memoryAudit) RecordDeletion(ctx context.Context, actor qualification.Actor, entityID uuid.UUID, snapshot qualification.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries++
	return nil
}

type testEnv struct {
	ts    *httptest.Server
	cli   *http.Client
	owner uuid.UUID
}

func newTestEnv(t *testing.T, ds qualification.DataSource, audit qualification.AuditLog) *testEnv {
	t.Helper()

	sess := scs.New()
	sess.Lifetime = time.Hour

	ctx := assistant.New()
	svc := qualification.NewService(cache.New(), bus.New(), ds, audit, ctx, 5*time.Minute, 10, zerolog.Nop())

	exports := export.NewRegistry()
	exports.Register(export.JSON())

	srv := New(ServerOptions{
		Sess:           sess,
		Svc:            svc,
		Exports:        exports,
		Assistant:      ctx,
		Log:            zerolog.Nop(),
		RetentionHours: 24,
	})

	ts := httptest.NewServer(sess.LoadAndSave(srv.Router))
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		ts:    ts,
		cli:   &http.Client{Jar: jar},
		owner: uuid.New(),
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-Actor-Id", "op-1")
	req.Header.Set("X-Actor-Email", "op@example.com")
	req.Header.Set("X-Actor-Name", "Operator One")
	resp, err := e.cli.Do(req)
	require.NoError(t, err)
	return resp
}

func qualRecord(taxpayer, market string, amount float64) qualification.Record {
	return qualification.Record{
		ID:                uuid.New(),
		TaxpayerID:        taxpayer,
		InstrumentType:    "Bond",
		QualificationType: "Interest",
		Market:            market,
		Period:            "2024",
		Amount:            qualification.Money{Value: amount, Currency: "CLP"},
		UpdatedAt:         time.Now().UTC(),
	}
}

type viewPayload struct {
	Rows       []qualification.Record `json:"rows"`
	Total      int                    `json:"total"`
	TotalPages int                    `json:"total_pages"`
	Page       qualification.Page     `json:"page"`
	Sort       qualification.Sort     `json:"sort"`
}

func decodeView(t *testing.T, resp *http.Response) viewPayload {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v viewPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestListAppliesFilterAndPagination(t *testing.T) {
	var records []qualification.Record
	for i := 0; i < 25; i++ {
		market := "Santiago"
		if i < 12 {
			market = "NYSE"
		}
		records = append(records, qualRecord(fmt.Sprintf("11.111.%03d-1", i), market, float64(i*100)))
	}
	env := newTestEnv(t, newMemorySource(records...), &memoryAudit{})

	view := decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+env.owner.String(), ""))
	assert.Equal(t, 25, view.Total)
	assert.Len(t, view.Rows, 10)
	assert.Equal(t, 3, view.TotalPages)

	view = decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+env.owner.String()+"&market=NYSE", ""))
	assert.Equal(t, 12, view.Total)
	assert.Equal(t, 1, view.Page.Current, "filter change must reset the page")
	for _, r := range view.Rows {
		assert.Equal(t, "NYSE", r.Market)
	}
}

func TestSortWithExplicitDirectionIsIdempotent(t *testing.T) {
	env := newTestEnv(t, newMemorySource(
		qualRecord("11.111.111-1", "NYSE", 100),
		qualRecord("22.222.222-2", "NYSE", 200),
	), &memoryAudit{})
	path := "/qualifications?owner=" + env.owner.String() + "&sort=amount&direction=asc"

	// Reloading the same URL must not flip the direction.
	view := decodeView(t, env.do(t, http.MethodGet, path, ""))
	assert.Equal(t, qualification.Ascending, view.Sort.Direction)
	view = decodeView(t, env.do(t, http.MethodGet, path, ""))
	assert.Equal(t, qualification.Ascending, view.Sort.Direction)
	assert.Equal(t, 100.0, view.Rows[0].Amount.Value)

	// Without a direction the request is the header-click toggle.
	view = decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+env.owner.String()+"&sort=amount", ""))
	assert.Equal(t, qualification.Descending, view.Sort.Direction)
	assert.Equal(t, 200.0, view.Rows[0].Amount.Value)
}

func TestDeleteSelectedFlow(t *testing.T) {
	records := []qualification.Record{
		qualRecord("11.111.111-1", "NYSE", 100),
		qualRecord("22.222.222-2", "NYSE", 200),
		qualRecord("33.333.333-3", "Santiago", 300),
	}
	ds := newMemorySource(records...)
	audit := &memoryAudit{}
	env := newTestEnv(t, ds, audit)
	owner := env.owner.String()

	// Load the view, then select everything on the NYSE filter.
	decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+owner+"&market=NYSE", ""))
	resp := env.do(t, http.MethodPost, "/selection/all?owner="+owner, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/qualifications/delete-selected", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/qualifications/delete/confirm?owner="+owner, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Both NYSE records are gone; the collection was refetched.
	view := decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+owner+"&market=", ""))
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, "Santiago", view.Rows[0].Market)
	assert.Equal(t, 2, audit.entries)
}

func TestSingleDeleteFlow(t *testing.T) {
	target := qualRecord("11.111.111-1", "NYSE", 100)
	keep := qualRecord("22.222.222-2", "NYSE", 200)
	ds := newMemorySource(target, keep)
	env := newTestEnv(t, ds, &memoryAudit{})
	owner := env.owner.String()

	decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+owner, ""))

	resp := env.do(t, http.MethodPost, "/qualifications/"+target.ID.String()+"/delete", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// A second request while one is pending is rejected.
	resp = env.do(t, http.MethodPost, "/qualifications/"+keep.ID.String()+"/delete", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/qualifications/delete/confirm?owner="+owner, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	view := decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+owner, ""))
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, keep.ID, view.Rows[0].ID)
}

func TestRequestsWithoutActorAreRejected(t *testing.T) {
	env := newTestEnv(t, newMemorySource(), &memoryAudit{})

	// No X-Actor-* headers, no session identity.
	resp, err := env.cli.Get(env.ts.URL + "/qualifications?owner=" + env.owner.String())
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCacheEndpointsForceRefetch(t *testing.T) {
	ds := newMemorySource(qualRecord("11.111.111-1", "NYSE", 100))
	env := newTestEnv(t, ds, &memoryAudit{})
	owner := env.owner.String()

	decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+owner, ""))
	decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+owner, ""))
	require.Equal(t, 1, ds.lists, "second read must come from cache")

	resp := env.do(t, http.MethodPost, "/cache/invalidate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	decodeView(t, env.do(t, http.MethodGet, "/qualifications?owner="+owner, ""))
	assert.Equal(t, 2, ds.lists)
}

func TestExportStreamsFullMatchedView(t *testing.T) {
	var records []qualification.Record
	for i := 0; i < 15; i++ {
		records = append(records, qualRecord(fmt.Sprintf("11.111.%03d-1", i), "NYSE", float64(i)))
	}
	env := newTestEnv(t, newMemorySource(records...), &memoryAudit{})
	owner := env.owner.String()

	resp := env.do(t, http.MethodGet, "/qualifications/export?owner="+owner+"&format=json", "")
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The export covers the whole filtered view, not the 10-row page.
	var rows []qualification.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	assert.Len(t, rows, 15)

	resp = env.do(t, http.MethodGet, "/qualifications/export?owner="+owner+"&format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestStatsEndpoint(t *testing.T) {
	ds := newMemorySource(
		qualRecord("11.111.111-1", "NYSE", 100),
		qualRecord("22.222.222-2", "Santiago", 200),
	)
	env := newTestEnv(t, ds, &memoryAudit{})

	resp := env.do(t, http.MethodGet, "/stats?owner="+env.owner.String(), "")
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats qualification.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 300.0, stats.AmountByCurrency["CLP"])
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, newMemorySource(), &memoryAudit{})
	resp, err := env.cli.Get(env.ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
