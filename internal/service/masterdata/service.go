package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importerr"
)

// Result identifies a resolved master-data record.
type Result struct {
	ID            string
	CanonicalName string
	IsNew         bool
}

// CourtHint carries the secondary signals for court resolution.
type CourtHint struct {
	// CaseIDType is the case-id prefix used to infer the court type.
	CaseIDType string
	// Code is an explicit court code (original_code), if any.
	Code string
}

// Normalizer resolves courts, judges and case types. It holds no per-run
// state and is safe for concurrent use.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer { return &Normalizer{} }

// ExtractAndNormalizeCourt resolves a court name to a court record, creating
// it when no existing court matches.
func (n *Normalizer) ExtractAndNormalizeCourt(ctx context.Context, tx Tx, name string, hint CourtHint, tr *Tracker) (Result, error) {
	if err := validateName("court", name, maxCourtNameLen); err != nil {
		return Result{}, nameError("court", name, err)
	}
	canonical := NormalizeName(name)
	code := strings.ToUpper(strings.TrimSpace(hint.Code))
	key := canonical + "|" + code

	if r, ok := tr.lookup(kindCourt, key); ok {
		return r, nil
	}

	existing, err := n.matchCourt(ctx, tx, canonical, code)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		r := Result{ID: existing.ID, CanonicalName: existing.CourtName}
		tr.remember(kindCourt, key, r)
		return r, nil
	}

	if code == "" {
		code = CourtCode(canonical)
	}
	court := &domain.Court{
		ID:             uuid.New().String(),
		CourtName:      canonical,
		NormalizedName: canonical,
		CourtCode:      code,
		CourtType:      InferCourtType(hint.CaseIDType, canonical),
		IsActive:       true,
	}
	created, err := tx.InsertCourt(ctx, court)
	if err != nil {
		return Result{}, fmt.Errorf("insert court: %w", err)
	}

	r := Result{ID: court.ID, CanonicalName: canonical, IsNew: true}
	if !created {
		winner, err := tx.FindCourt(ctx, canonical, code)
		if err != nil {
			return Result{}, err
		}
		if winner == nil {
			return Result{}, fmt.Errorf("court %q: %w", canonical, ErrNotResolved)
		}
		r = Result{ID: winner.ID, CanonicalName: winner.CourtName}
	}
	tr.remember(kindCourt, key, r)
	return r, nil
}

// LookupCourt resolves a court without creating it. found is false when no
// court matches.
func (n *Normalizer) LookupCourt(ctx context.Context, tx Tx, name string, hint CourtHint, tr *Tracker) (Result, bool, error) {
	if validateName("court", name, maxCourtNameLen) != nil {
		return Result{}, false, nil
	}
	canonical := NormalizeName(name)
	code := strings.ToUpper(strings.TrimSpace(hint.Code))
	if r, ok := tr.lookup(kindCourt, canonical+"|"+code); ok {
		return r, true, nil
	}
	c, err := n.matchCourt(ctx, tx, canonical, code)
	if err != nil || c == nil {
		return Result{}, false, err
	}
	return Result{ID: c.ID, CanonicalName: c.CourtName}, true, nil
}

func (n *Normalizer) matchCourt(ctx context.Context, tx Tx, canonical, code string) (*domain.Court, error) {
	c, err := tx.FindCourt(ctx, canonical, code)
	if err != nil {
		return nil, fmt.Errorf("find court: %w", err)
	}
	if c != nil {
		return c, nil
	}

	keywords := CourtKeywords(canonical)
	if len(keywords) == 0 {
		return nil, nil
	}
	courts, err := tx.ListCourts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	for i := range courts {
		if sameKeywords(keywords, CourtKeywords(courts[i].NormalizedName)) {
			return &courts[i], nil
		}
	}
	return nil, nil
}

// ExtractAndNormalizeJudge resolves a judge name, creating the judge when no
// existing judge matches by full name or by first and last name.
func (n *Normalizer) ExtractAndNormalizeJudge(ctx context.Context, tx Tx, name string, tr *Tracker) (Result, error) {
	if err := validateName("judge", name, maxJudgeNameLen); err != nil {
		return Result{}, nameError("judge", name, err)
	}
	jn := ParseJudgeName(name)
	if r, ok := tr.lookup(kindJudge, jn.FullName); ok {
		return r, nil
	}

	existing, err := tx.FindJudge(ctx, jn.FullName, jn.FirstName, jn.LastName)
	if err != nil {
		return Result{}, fmt.Errorf("find judge: %w", err)
	}
	if existing != nil {
		r := Result{ID: existing.ID, CanonicalName: existing.FullName}
		tr.remember(kindJudge, jn.FullName, r)
		return r, nil
	}

	judge := &domain.Judge{
		ID:             uuid.New().String(),
		FullName:       jn.FullName,
		NormalizedName: jn.FullName,
		FirstName:      jn.FirstName,
		LastName:       jn.LastName,
		IsActive:       true,
	}
	created, err := tx.InsertJudge(ctx, judge)
	if err != nil {
		return Result{}, fmt.Errorf("insert judge: %w", err)
	}

	r := Result{ID: judge.ID, CanonicalName: jn.FullName, IsNew: true}
	if !created {
		winner, err := tx.FindJudge(ctx, jn.FullName, jn.FirstName, jn.LastName)
		if err != nil {
			return Result{}, err
		}
		if winner == nil {
			return Result{}, fmt.Errorf("judge %q: %w", jn.FullName, ErrNotResolved)
		}
		r = Result{ID: winner.ID, CanonicalName: winner.FullName}
	}
	tr.remember(kindJudge, jn.FullName, r)
	return r, nil
}

// LookupJudge resolves a judge without creating it.
func (n *Normalizer) LookupJudge(ctx context.Context, tx Tx, name string, tr *Tracker) (Result, bool, error) {
	if validateName("judge", name, maxJudgeNameLen) != nil {
		return Result{}, false, nil
	}
	jn := ParseJudgeName(name)
	if r, ok := tr.lookup(kindJudge, jn.FullName); ok {
		return r, true, nil
	}
	j, err := tx.FindJudge(ctx, jn.FullName, jn.FirstName, jn.LastName)
	if err != nil || j == nil {
		return Result{}, false, err
	}
	return Result{ID: j.ID, CanonicalName: j.FullName}, true, nil
}

// ExtractAndNormalizeCaseType resolves a case type by name or generated code.
func (n *Normalizer) ExtractAndNormalizeCaseType(ctx context.Context, tx Tx, name string, tr *Tracker) (Result, error) {
	if err := validateName("case_type", name, maxCaseTypeNameLen); err != nil {
		return Result{}, nameError("case_type", name, err)
	}
	canonical := NormalizeName(name)
	code := CaseTypeCode(canonical)
	if r, ok := tr.lookup(kindCaseType, canonical); ok {
		return r, nil
	}

	existing, err := tx.FindCaseType(ctx, canonical, code)
	if err != nil {
		return Result{}, fmt.Errorf("find case type: %w", err)
	}
	if existing != nil {
		r := Result{ID: existing.ID, CanonicalName: existing.CaseTypeName}
		tr.remember(kindCaseType, canonical, r)
		return r, nil
	}

	ct := &domain.CaseType{
		ID:             uuid.New().String(),
		CaseTypeName:   canonical,
		NormalizedName: canonical,
		CaseTypeCode:   code,
		IsActive:       true,
	}
	created, err := tx.InsertCaseType(ctx, ct)
	if err != nil {
		return Result{}, fmt.Errorf("insert case type: %w", err)
	}

	r := Result{ID: ct.ID, CanonicalName: canonical, IsNew: true}
	if !created {
		winner, err := tx.FindCaseType(ctx, canonical, code)
		if err != nil {
			return Result{}, err
		}
		if winner == nil {
			return Result{}, fmt.Errorf("case type %q: %w", canonical, ErrNotResolved)
		}
		r = Result{ID: winner.ID, CanonicalName: winner.CaseTypeName}
	}
	tr.remember(kindCaseType, canonical, r)
	return r, nil
}

func nameError(field, raw string, err error) *importerr.ImportError {
	e := importerr.New(importerr.KindValidation, 0, field, err.Error())
	e.RawValue = raw
	e.Cause = err
	return e
}
