package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignite/caseload-importer/internal/csvstream"
	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/repository"
	"github.com/ignite/caseload-importer/internal/repository/memstore"
	"github.com/ignite/caseload-importer/internal/service/job"
)

var testHeader = []string{
	"court", "date_dd", "date_mon", "date_yyyy", "caseid_type", "caseid_no",
	"filed_dd", "filed_mon", "filed_yyyy", "case_type", "judge_1", "comingfor", "outcome",
}

// row builds a valid data row for case HCCC/<caseNo> heard on <day>-Nov-2023.
func row(caseNo, day string) []string {
	return []string{
		"Milimani Civil", day, "Nov", "2023", "HCCC", caseNo,
		"13", "Jun", "2019", "Civil Suit", "Kendagor, Caroline J", "Mention", "Directions Given",
	}
}

// badRow fails validation on the activity month.
func badRow(caseNo string) []string {
	r := row(caseNo, "6")
	r[2] = "Foo"
	return r
}

func writeCSV(t *testing.T, name string, rows ...[]string) string {
	t.Helper()
	lines := []string{csvstream.FormatLine(testHeader)}
	for _, r := range rows {
		lines = append(lines, csvstream.FormatLine(r))
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads []domain.JobPayload
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, p domain.JobPayload) (domain.JobHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return domain.JobHandle{}, q.err
	}
	q.payloads = append(q.payloads, p)
	return domain.JobHandle{ID: "job-" + p.BatchID}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	history map[string][]domain.JobStatus
}

func newFakeCache() *fakeCache { return &fakeCache{history: make(map[string][]domain.JobStatus)} }

func (c *fakeCache) SetStatus(_ context.Context, id string, st domain.JobStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[id] = append(c.history[id], st)
	return nil
}

func (c *fakeCache) GetStatus(_ context.Context, id string) (*domain.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.history[id]
	if len(h) == 0 {
		return nil, nil
	}
	st := h[len(h)-1]
	return &st, nil
}

type fakeReports struct {
	mu      sync.Mutex
	reports []*Report
}

func (f *fakeReports) WriteReport(_ context.Context, r *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

type harness struct {
	store   *memstore.Store
	queue   *fakeQueue
	cache   *fakeCache
	reports *fakeReports
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore builds an orchestrator over wrap(store) when wrap is
// given, so tests can inject persistence faults.
func newHarnessWithStore(t *testing.T, wrap func(*memstore.Store) repository.Store) *harness {
	t.Helper()
	h := &harness{
		store:   memstore.New(),
		queue:   &fakeQueue{},
		cache:   newFakeCache(),
		reports: &fakeReports{},
	}
	var store repository.Store = h.store
	if wrap != nil {
		store = wrap(h.store)
	}
	h.orch = New(Deps{
		Store:   store,
		Jobs:    job.NewService(h.queue, h.cache),
		Reports: h.reports,
	})
	return h
}

func (h *harness) lastStatus(batchID string) domain.JobStatus {
	h.cache.mu.Lock()
	defer h.cache.mu.Unlock()
	hist := h.cache.history[batchID]
	if len(hist) == 0 {
		return domain.JobStatus{}
	}
	return hist[len(hist)-1]
}

// miscountingStore reports one more persisted activity than exists.
type miscountingStore struct {
	*memstore.Store
}

func (s miscountingStore) CountActivitiesByBatch(ctx context.Context, id string) (int, error) {
	n, err := s.Store.CountActivitiesByBatch(ctx, id)
	return n + 1, err
}

// commitFailingStore hands out transactions whose Commit always fails.
type commitFailingStore struct {
	*memstore.Store
}

func (s commitFailingStore) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return commitFailingTx{tx}, nil
}

type commitFailingTx struct {
	repository.Tx
}

func (t commitFailingTx) Commit() error {
	_ = t.Tx.Rollback()
	return errors.New("could not serialize access due to concurrent update")
}

// savepointCountingStore records how many savepoints each transaction still
// held when it committed.
type savepointCountingStore struct {
	*memstore.Store

	mu       sync.Mutex
	open     []int
	maxDepth int
}

func (s *savepointCountingStore) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &savepointCountingTx{Tx: tx, store: s}, nil
}

func (s *savepointCountingStore) openAtCommit() ([]int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.open...), s.maxDepth
}

type savepointCountingTx struct {
	repository.Tx
	store *savepointCountingStore
	depth int
}

func (t *savepointCountingTx) Savepoint(ctx context.Context, name string) error {
	if err := t.Tx.Savepoint(ctx, name); err != nil {
		return err
	}
	t.depth++
	t.store.mu.Lock()
	if t.depth > t.store.maxDepth {
		t.store.maxDepth = t.depth
	}
	t.store.mu.Unlock()
	return nil
}

func (t *savepointCountingTx) Release(ctx context.Context, name string) error {
	if err := t.Tx.Release(ctx, name); err != nil {
		return err
	}
	t.depth--
	return nil
}

func (t *savepointCountingTx) Commit() error {
	t.store.mu.Lock()
	t.store.open = append(t.store.open, t.depth)
	t.store.mu.Unlock()
	return t.Tx.Commit()
}
