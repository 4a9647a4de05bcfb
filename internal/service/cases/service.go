package cases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importerr"
	"github.com/ignite/caseload-importer/internal/service/masterdata"
	"github.com/ignite/caseload-importer/internal/validation"
)

var appealPrefixes = []string{"COA", "CA", "HCCA", "ELCA"}

// CaseResult identifies the case a row was applied to.
type CaseResult struct {
	CaseID    string
	IsNewCase bool
}

// Service applies validated rows to cases and activities.
type Service struct {
	norm *masterdata.Normalizer
	now  func() time.Time
}

// NewService creates a case service that resolves master data through norm.
func NewService(norm *masterdata.Normalizer) *Service {
	return &Service{norm: norm, now: time.Now}
}

// CreateOrUpdateCase finds the row's case by (case number, court) and
// refreshes it, or creates it together with its judge assignments.
func (s *Service) CreateOrUpdateCase(ctx context.Context, tx Tx, row *validation.ValidatedRow, createdBy string, tr *masterdata.Tracker) (CaseResult, error) {
	if row.CaseIDType == "" || row.CaseIDNo == "" || row.CaseType == "" || row.FiledDate.IsZero() {
		return CaseResult{}, missing(row.RowNumber, "", ErrMissingCaseFields)
	}

	caseType, err := s.norm.ExtractAndNormalizeCaseType(ctx, tx, row.CaseType, tr)
	if err != nil {
		return CaseResult{}, err
	}
	court, err := s.norm.ExtractAndNormalizeCourt(ctx, tx, row.Court, masterdata.CourtHint{CaseIDType: row.CaseIDType}, tr)
	if err != nil {
		return CaseResult{}, err
	}

	var originalCourtID *string
	if IsAppeal(row) && row.OriginalCourt != "" {
		orig, err := s.norm.ExtractAndNormalizeCourt(ctx, tx, row.OriginalCourt, masterdata.CourtHint{Code: row.OriginalCode}, tr)
		if err != nil {
			return CaseResult{}, err
		}
		originalCourtID = &orig.ID
	}

	caseNumber := row.CaseNumber()
	existing, err := tx.FindCase(ctx, caseNumber, court.CanonicalName)
	if err != nil {
		return CaseResult{}, fmt.Errorf("find case %s: %w", caseNumber, err)
	}
	if existing != nil {
		hasRep := existing.HasLegalRepresentation
		if row.LegalRep != "" {
			hasRep = row.HasLegalRepresentation()
		}
		last := row.ActivityDate
		if existing.LastActivityDate.After(last) {
			last = existing.LastActivityDate
		}
		if err := tx.TouchCase(ctx, existing.ID, hasRep, last); err != nil {
			return CaseResult{}, fmt.Errorf("update case %s: %w", caseNumber, err)
		}
		return CaseResult{CaseID: existing.ID}, nil
	}

	now := s.now().UTC()
	c := &domain.Case{
		ID:                     uuid.New().String(),
		CaseNumber:             caseNumber,
		CourtName:              court.CanonicalName,
		CourtID:                court.ID,
		OriginalCourtID:        originalCourtID,
		OriginalCaseNumber:     row.OriginalNumber,
		OriginalYear:           row.OriginalYear,
		CaseTypeID:             caseType.ID,
		FiledDate:              row.FiledDate,
		PartyCounts:            row.Parties,
		Status:                 domain.CaseActive,
		HasLegalRepresentation: row.HasLegalRepresentation(),
		LastActivityDate:       row.ActivityDate,
		TotalActivities:        1,
		CreatedBy:              createdBy,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := tx.InsertCase(ctx, c); err != nil {
		return CaseResult{}, fmt.Errorf("insert case %s: %w", caseNumber, err)
	}

	if err := s.assignJudges(ctx, tx, c.ID, row, tr); err != nil {
		return CaseResult{}, err
	}
	return CaseResult{CaseID: c.ID, IsNewCase: true}, nil
}

func (s *Service) assignJudges(ctx context.Context, tx Tx, caseID string, row *validation.ValidatedRow, tr *masterdata.Tracker) error {
	assigned := make(map[string]bool, len(row.Judges))
	for i, name := range row.Judges {
		j, err := s.norm.ExtractAndNormalizeJudge(ctx, tx, name, tr)
		if err != nil {
			return err
		}
		if assigned[j.ID] {
			continue
		}
		assigned[j.ID] = true
		if err := tx.AssignJudge(ctx, domain.CaseJudgeAssignment{CaseID: caseID, JudgeID: j.ID, IsPrimary: i == 0}); err != nil {
			return fmt.Errorf("assign judge: %w", err)
		}
	}
	return nil
}

// CreateCaseActivity writes the row's activity for caseID. It returns false
// without writing when an activity with the same natural key exists.
func (s *Service) CreateCaseActivity(ctx context.Context, tx Tx, row *validation.ValidatedRow, caseID, batchID string, tr *masterdata.Tracker) (bool, error) {
	if row.ActivityDate.IsZero() {
		return false, missing(row.RowNumber, "date_dd", ErrMissingActivityFields)
	}
	if row.PrimaryJudge() == "" {
		return false, missing(row.RowNumber, "judge_1", ErrMissingActivityFields)
	}

	judge, err := s.norm.ExtractAndNormalizeJudge(ctx, tx, row.PrimaryJudge(), tr)
	if err != nil {
		return false, err
	}

	a := &domain.CaseActivity{
		ID:                     uuid.New().String(),
		CaseID:                 caseID,
		ActivityDate:           row.ActivityDate,
		ActivityType:           row.ComingFor,
		Outcome:                row.Outcome,
		ReasonForAdjournment:   row.ReasonAdj,
		NextHearingDate:        row.NextHearingDate,
		PrimaryJudgeID:         judge.ID,
		HasLegalRepresentation: row.HasLegalRepresentation(),
		ApplicantWitnesses:     row.ApplicantWitnesses,
		DefendantWitnesses:     row.DefendantWitnesses,
		CustodyStatus:          row.Custody,
		Details:                row.OtherDetails,
		ImportBatchID:          batchID,
		CreatedAt:              s.now().UTC(),
	}
	key := a.Key()
	if tr.SeenActivity(key) {
		return false, nil
	}
	exists, err := tx.ActivityExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check activity: %w", err)
	}
	if exists {
		return false, nil
	}

	created, err := tx.InsertActivity(ctx, a)
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	if created {
		tr.RecordActivity(key)
	}
	return created, nil
}

// IsDuplicateActivity reports, without writing anything, whether the row's
// activity already exists. Rows whose court, judge or case are unknown are
// never duplicates.
func (s *Service) IsDuplicateActivity(ctx context.Context, tx Tx, row *validation.ValidatedRow, tr *masterdata.Tracker) (bool, error) {
	if row.PrimaryJudge() == "" || row.ActivityDate.IsZero() {
		return false, nil
	}
	court, found, err := s.norm.LookupCourt(ctx, tx, row.Court, masterdata.CourtHint{CaseIDType: row.CaseIDType}, tr)
	if err != nil || !found {
		return false, err
	}
	judge, found, err := s.norm.LookupJudge(ctx, tx, row.PrimaryJudge(), tr)
	if err != nil || !found {
		return false, err
	}
	c, err := tx.FindCase(ctx, row.CaseNumber(), court.CanonicalName)
	if err != nil || c == nil {
		return false, err
	}

	key := domain.ActivityKey{CaseID: c.ID, ActivityDate: row.ActivityDate, ActivityType: row.ComingFor, PrimaryJudgeID: judge.ID}
	if tr.SeenActivity(key) {
		return true, nil
	}
	return tx.ActivityExists(ctx, key)
}

// IsAppeal reports whether the row describes an appeal.
func IsAppeal(row *validation.ValidatedRow) bool {
	if strings.Contains(strings.ToLower(row.CaseType), "appeal") ||
		strings.Contains(strings.ToLower(row.CaseIDType), "appeal") {
		return true
	}
	prefix := strings.ToUpper(row.CaseIDType)
	for _, p := range appealPrefixes {
		if prefix == p {
			return true
		}
	}
	return false
}

func missing(row int, field string, err error) *importerr.ImportError {
	e := importerr.New(importerr.KindMissingFields, row, field, err.Error())
	e.Cause = err
	return e
}
