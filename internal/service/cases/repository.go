package cases

import (
	"context"
	"time"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/service/masterdata"
)

// Tx is the transaction-scoped data access contract for cases and
// activities. Find methods return (nil, nil) when nothing matches.
type Tx interface {
	masterdata.Tx

	FindCase(ctx context.Context, caseNumber, courtName string) (*domain.Case, error)
	InsertCase(ctx context.Context, c *domain.Case) error

	// TouchCase increments total_activities and refreshes the mutable
	// activity fields of an existing case.
	TouchCase(ctx context.Context, caseID string, hasLegalRep bool, lastActivity time.Time) error

	// AssignJudge links a judge to a case; an existing link is left as is.
	AssignJudge(ctx context.Context, a domain.CaseJudgeAssignment) error

	ActivityExists(ctx context.Context, key domain.ActivityKey) (bool, error)

	// InsertActivity writes a unless its natural key exists and reports
	// whether a row was written.
	InsertActivity(ctx context.Context, a *domain.CaseActivity) (bool, error)
}
