package masterdata

import (
	"context"

	"github.com/ignite/caseload-importer/internal/domain"
)

// Tx is the transaction-scoped data access contract for master data.
// Find methods return (nil, nil) when nothing matches.
type Tx interface {
	// FindCourt matches by normalized name, or by code when code is non-empty.
	FindCourt(ctx context.Context, normalizedName, code string) (*domain.Court, error)

	// ListCourts returns every active court, for keyword matching.
	ListCourts(ctx context.Context) ([]domain.Court, error)

	// InsertCourt inserts c unless a court with the same normalized name or
	// code exists. It reports whether a row was written and sets c.ID if so.
	InsertCourt(ctx context.Context, c *domain.Court) (bool, error)

	// FindJudge matches by normalized name, or by (first, last) when both are set.
	FindJudge(ctx context.Context, normalizedName, firstName, lastName string) (*domain.Judge, error)

	InsertJudge(ctx context.Context, j *domain.Judge) (bool, error)

	// FindCaseType matches by normalized name or code.
	FindCaseType(ctx context.Context, normalizedName, code string) (*domain.CaseType, error)

	InsertCaseType(ctx context.Context, ct *domain.CaseType) (bool, error)
}
