// Package memstore is an in-memory implementation of the persistence
// contract, used for dry runs and tests.
//
// Transactions are serialized: BeginTx holds the case tables exclusively
// until Commit or Rollback, so a Tx never observes another Tx's writes.
// Batches and users live outside transactions, as they do in PostgreSQL
// where they are written with autocommit statements.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/repository"
	"github.com/ignite/caseload-importer/internal/service/batch"
)

// ErrTxDone is returned when a finished transaction is used.
var ErrTxDone = errors.New("memstore: transaction has already been committed or rolled back")

// Store holds all tables in memory. It is safe for concurrent use.
type Store struct {
	caseLock    chan struct{} // guards the case tables, held for the life of a Tx
	courts      map[string]*domain.Court
	judges      map[string]*domain.Judge
	caseTypes   map[string]*domain.CaseType
	cases       map[string]*domain.Case
	caseIndex   map[string]string
	assignments map[string]domain.CaseJudgeAssignment
	activities  map[string]*domain.CaseActivity
	activityIdx map[string]string

	metaMu  sync.RWMutex
	batches map[string]*domain.ImportBatch
	users   map[string]*domain.User

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		caseLock:    make(chan struct{}, 1),
		courts:      make(map[string]*domain.Court),
		judges:      make(map[string]*domain.Judge),
		caseTypes:   make(map[string]*domain.CaseType),
		cases:       make(map[string]*domain.Case),
		caseIndex:   make(map[string]string),
		assignments: make(map[string]domain.CaseJudgeAssignment),
		activities:  make(map[string]*domain.CaseActivity),
		activityIdx: make(map[string]string),
		batches:     make(map[string]*domain.ImportBatch),
		users:       make(map[string]*domain.User),
		now:         time.Now,
	}
}

// BeginTx starts a transaction, waiting for any open one to finish.
func (s *Store) BeginTx(ctx context.Context) (repository.Tx, error) {
	select {
	case s.caseLock <- struct{}{}:
		return &Tx{s: s, savepoints: make(map[string]int)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) lockCases()   { s.caseLock <- struct{}{} }
func (s *Store) unlockCases() { <-s.caseLock }

// CreateBatch implements batch.Repository.
func (s *Store) CreateBatch(_ context.Context, b *domain.ImportBatch) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	for _, e := range s.batches {
		if e.FileChecksum == b.FileChecksum {
			return batch.ErrDuplicate
		}
	}
	s.batches[b.ID] = cloneBatch(b)
	return nil
}

func (s *Store) GetBatch(_ context.Context, id string) (*domain.ImportBatch, error) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, batch.ErrNotFound
	}
	return cloneBatch(b), nil
}

func (s *Store) FindBatchByChecksum(_ context.Context, checksum string) (*domain.ImportBatch, error) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	for _, b := range s.batches {
		if b.FileChecksum == checksum {
			return cloneBatch(b), nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateBatchStatus(_ context.Context, id string, status domain.BatchStatus) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return batch.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) UpdateBatchStats(_ context.Context, id string, st domain.BatchStats, completedAt *time.Time) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return batch.ErrNotFound
	}
	b.Status = st.Status
	b.TotalRecords = st.TotalRecords
	b.SuccessfulRecords = st.SuccessfulRecords
	b.FailedRecords = st.FailedRecords
	b.DuplicatesSkipped = st.DuplicatesSkipped
	b.EmptyRowsSkipped = st.EmptyRowsSkipped
	b.ErrorLogs = append([]domain.ErrorLogEntry(nil), st.ErrorLogs...)
	b.FailureCategory = st.FailureCategory
	b.FailureReason = st.FailureReason
	b.CompletedAt = completedAt
	b.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ListBatches(_ context.Context, limit int) ([]domain.ImportBatch, error) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	out := make([]domain.ImportBatch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, *cloneBatch(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountActivitiesByBatch(_ context.Context, batchID string) (int, error) {
	s.lockCases()
	defer s.unlockCases()
	n := 0
	for _, a := range s.activities {
		if a.ImportBatchID == batchID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, batch.ErrUserNotFound
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	if u, ok := s.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) InsertUser(_ context.Context, u *domain.User) (bool, error) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return false, nil
	}
	cp := *u
	s.users[u.Email] = &cp
	return true, nil
}

// Snapshot is a read-only copy of the case tables, for inspection.
type Snapshot struct {
	Courts      []domain.Court
	Judges      []domain.Judge
	CaseTypes   []domain.CaseType
	Cases       []domain.Case
	Assignments []domain.CaseJudgeAssignment
	Activities  []domain.CaseActivity
}

// Snapshot copies the committed case tables.
func (s *Store) Snapshot() Snapshot {
	s.lockCases()
	defer s.unlockCases()
	var snap Snapshot
	for _, c := range s.courts {
		snap.Courts = append(snap.Courts, *c)
	}
	for _, j := range s.judges {
		snap.Judges = append(snap.Judges, *j)
	}
	for _, ct := range s.caseTypes {
		snap.CaseTypes = append(snap.CaseTypes, *ct)
	}
	for _, c := range s.cases {
		snap.Cases = append(snap.Cases, *c)
	}
	for _, a := range s.assignments {
		snap.Assignments = append(snap.Assignments, a)
	}
	for _, a := range s.activities {
		snap.Activities = append(snap.Activities, *a)
	}
	return snap
}

func cloneBatch(b *domain.ImportBatch) *domain.ImportBatch {
	cp := *b
	cp.ErrorLogs = append([]domain.ErrorLogEntry(nil), b.ErrorLogs...)
	return &cp
}

func activityKey(k domain.ActivityKey) string {
	return fmt.Sprintf("%s|%s|%s|%s", k.CaseID, k.ActivityDate.Format("2006-01-02"), k.ActivityType, k.PrimaryJudgeID)
}

func caseKey(caseNumber, courtName string) string {
	return caseNumber + "|" + courtName
}
