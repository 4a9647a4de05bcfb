package masterdata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importerr"
)

// mockTx is an in-memory master-data store for testing.
type mockTx struct {
	mu        sync.Mutex
	courts    []*domain.Court
	judges    []*domain.Judge
	caseTypes []*domain.CaseType
	// stealInsert simulates a concurrent writer winning the insert race.
	stealInsert bool
	findErr     error
}

func (m *mockTx) FindCourt(_ context.Context, name, code string) (*domain.Court, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, c := range m.courts {
		if c.NormalizedName == name || (code != "" && c.CourtCode == code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockTx) ListCourts(_ context.Context) ([]domain.Court, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Court, 0, len(m.courts))
	for _, c := range m.courts {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockTx) InsertCourt(_ context.Context, c *domain.Court) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stealInsert {
		m.stealInsert = false
		winner := *c
		winner.ID = "court-winner"
		m.courts = append(m.courts, &winner)
		return false, nil
	}
	for _, e := range m.courts {
		if e.NormalizedName == c.NormalizedName || e.CourtCode == c.CourtCode {
			return false, nil
		}
	}
	cp := *c
	m.courts = append(m.courts, &cp)
	return true, nil
}

func (m *mockTx) FindJudge(_ context.Context, name, first, last string) (*domain.Judge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.judges {
		if j.NormalizedName == name || (first != "" && last != "" && j.FirstName == first && j.LastName == last) {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockTx) InsertJudge(_ context.Context, j *domain.Judge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.judges {
		if e.NormalizedName == j.NormalizedName {
			return false, nil
		}
	}
	cp := *j
	m.judges = append(m.judges, &cp)
	return true, nil
}

func (m *mockTx) FindCaseType(_ context.Context, name, code string) (*domain.CaseType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ct := range m.caseTypes {
		if ct.NormalizedName == name || ct.CaseTypeCode == code {
			cp := *ct
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockTx) InsertCaseType(_ context.Context, ct *domain.CaseType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.caseTypes {
		if e.NormalizedName == ct.NormalizedName || e.CaseTypeCode == ct.CaseTypeCode {
			return false, nil
		}
	}
	cp := *ct
	m.caseTypes = append(m.caseTypes, &cp)
	return true, nil
}

func TestExtractAndNormalizeCourt_Idempotent(t *testing.T) {
	ctx := context.Background()
	tx := &mockTx{}
	n := NewNormalizer()

	first, err := n.ExtractAndNormalizeCourt(ctx, tx, "Milimani Civil", CourtHint{CaseIDType: "HCCC"}, NewTracker())
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	assert.Equal(t, "Milimani Civil", first.CanonicalName)

	second, err := n.ExtractAndNormalizeCourt(ctx, tx, "  MILIMANI   civil ", CourtHint{CaseIDType: "HCCC"}, NewTracker())
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.ID, second.ID)

	require.Len(t, tx.courts, 1)
	c := tx.courts[0]
	assert.Equal(t, domain.CourtHigh, c.CourtType)
	assert.True(t, strings.HasPrefix(c.CourtCode, "MC-"))
	assert.Len(t, c.CourtCode, len("MC-")+6)
}

func TestExtractAndNormalizeCourt_KeywordMatch(t *testing.T) {
	ctx := context.Background()
	tx := &mockTx{}
	n := NewNormalizer()
	tr := NewTracker()

	a, err := n.ExtractAndNormalizeCourt(ctx, tx, "Kibera Law Courts", CourtHint{}, tr)
	require.NoError(t, err)
	b, err := n.ExtractAndNormalizeCourt(ctx, tx, "The Court at Kibera", CourtHint{}, tr)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Kibera Law Courts", b.CanonicalName)
	assert.Equal(t, 1, tr.Stats().CourtsCreated)
	assert.Equal(t, 1, tr.Stats().CourtsExisting)
}

func TestExtractAndNormalizeCourt_ExplicitCode(t *testing.T) {
	ctx := context.Background()
	tx := &mockTx{}
	n := NewNormalizer()

	a, err := n.ExtractAndNormalizeCourt(ctx, tx, "Nairobi Chief Magistrates", CourtHint{Code: "nbi-cm"}, NewTracker())
	require.NoError(t, err)
	assert.Equal(t, "NBI-CM", tx.courts[0].CourtCode)
	assert.Equal(t, domain.CourtMagistrate, tx.courts[0].CourtType)

	b, err := n.ExtractAndNormalizeCourt(ctx, tx, "CMC Nairobi", CourtHint{Code: "NBI-CM"}, NewTracker())
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestExtractAndNormalizeCourt_InsertRace(t *testing.T) {
	tx := &mockTx{stealInsert: true}

	r, err := NewNormalizer().ExtractAndNormalizeCourt(context.Background(), tx, "Mombasa", CourtHint{}, NewTracker())
	require.NoError(t, err)
	assert.Equal(t, "court-winner", r.ID)
	assert.False(t, r.IsNew)
}

func TestExtractAndNormalizeCourt_Invalid(t *testing.T) {
	n := NewNormalizer()
	for _, name := range []string{"", "   ", "Court <script>", strings.Repeat("a", 201)} {
		_, err := n.ExtractAndNormalizeCourt(context.Background(), &mockTx{}, name, CourtHint{}, NewTracker())
		require.Error(t, err, "name %q", name)
		assert.ErrorIs(t, err, ErrInvalidName)

		var ie *importerr.ImportError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "court", ie.Field)
	}
}

func TestExtractAndNormalizeCourt_FindError(t *testing.T) {
	tx := &mockTx{findErr: errors.New("connection reset")}
	_, err := NewNormalizer().ExtractAndNormalizeCourt(context.Background(), tx, "Mombasa", CourtHint{}, NewTracker())
	assert.ErrorContains(t, err, "connection reset")
}

func TestExtractAndNormalizeJudge(t *testing.T) {
	ctx := context.Background()
	tx := &mockTx{}
	n := NewNormalizer()
	tr := NewTracker()

	a, err := n.ExtractAndNormalizeJudge(ctx, tx, "Kendagor, Caroline J", tr)
	require.NoError(t, err)
	assert.True(t, a.IsNew)
	assert.Equal(t, "Caroline Kendagor", a.CanonicalName)
	assert.Equal(t, "Caroline", tx.judges[0].FirstName)
	assert.Equal(t, "Kendagor", tx.judges[0].LastName)

	b, err := n.ExtractAndNormalizeJudge(ctx, tx, "Hon. Lady Justice caroline kendagor", NewTracker())
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	c, err := n.ExtractAndNormalizeJudge(ctx, tx, "Caroline W. Kendagor", NewTracker())
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.ID, "first/last pair matches")
	assert.Len(t, tx.judges, 1)
}

func TestExtractAndNormalizeCaseType(t *testing.T) {
	ctx := context.Background()
	tx := &mockTx{}
	n := NewNormalizer()

	a, err := n.ExtractAndNormalizeCaseType(ctx, tx, "Civil Suit", NewTracker())
	require.NoError(t, err)
	assert.Equal(t, "CIVIL_SUIT", tx.caseTypes[0].CaseTypeCode)

	b, err := n.ExtractAndNormalizeCaseType(ctx, tx, "civil-suit", NewTracker())
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID, "matches by generated code")
	assert.Len(t, tx.caseTypes, 1)
}

func TestLookups_DoNotCreate(t *testing.T) {
	ctx := context.Background()
	tx := &mockTx{}
	n := NewNormalizer()

	_, found, err := n.LookupCourt(ctx, tx, "Milimani", CourtHint{}, NewTracker())
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = n.LookupJudge(ctx, tx, "Odunga", NewTracker())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, tx.courts)
	assert.Empty(t, tx.judges)

	created, err := n.ExtractAndNormalizeJudge(ctx, tx, "Odunga", NewTracker())
	require.NoError(t, err)
	got, found, err := n.LookupJudge(ctx, tx, "ODUNGA", NewTracker())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, created.ID, got.ID)
}

func TestTracker_Revert(t *testing.T) {
	ctx := context.Background()
	tx := &mockTx{}
	n := NewNormalizer()
	tr := NewTracker()

	_, err := n.ExtractAndNormalizeCaseType(ctx, tx, "Civil Suit", tr)
	require.NoError(t, err)
	tr.Commit()

	m := tr.Mark()
	_, err = n.ExtractAndNormalizeCaseType(ctx, tx, "Criminal Appeal", tr)
	require.NoError(t, err)
	key := domain.ActivityKey{CaseID: "c1", ActivityDate: time.Date(2023, 11, 6, 0, 0, 0, 0, time.UTC), ActivityType: "Mention", PrimaryJudgeID: "j1"}
	tr.RecordActivity(key)
	assert.True(t, tr.SeenActivity(key))
	assert.Equal(t, 2, tr.Stats().CaseTypesCreated)

	tr.Revert(m)
	assert.False(t, tr.SeenActivity(key))
	assert.Equal(t, 1, tr.Stats().CaseTypesCreated)
	_, ok := tr.lookup(kindCaseType, "Criminal Appeal")
	assert.False(t, ok)
	_, ok = tr.lookup(kindCaseType, "Civil Suit")
	assert.True(t, ok)
}
