package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/repository"
)

// Tx is one import chunk. Inserts of master data and activities use
// ON CONFLICT DO NOTHING against the unique constraints, so two workers
// racing to create the same entity both succeed and the loser re-reads.
type Tx struct {
	tx *sqlx.Tx
}

var _ repository.Tx = (*Tx)(nil)

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}

func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}

func (t *Tx) Release(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}

func (t *Tx) Commit() error { return t.tx.Commit() }

func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// getOne runs a single-row query, mapping no rows to a nil result.
func getOne[T any](ctx context.Context, tx *sqlx.Tx, what, query string, args ...interface{}) (*T, error) {
	var v T
	err := tx.GetContext(ctx, &v, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	return &v, nil
}

func (t *Tx) insert(ctx context.Context, what, query string, arg interface{}) (bool, error) {
	res, err := t.tx.NamedExecContext(ctx, query, arg)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", what, err)
	}
	return affected(res)
}

const courtColumns = `id, court_name, normalized_name, court_code, court_type, is_active, created_at`

func (t *Tx) FindCourt(ctx context.Context, normalizedName, code string) (*domain.Court, error) {
	return getOne[domain.Court](ctx, t.tx, "court", `
		SELECT `+courtColumns+` FROM courts
		WHERE normalized_name = $1 OR ($2 <> '' AND court_code = $2)
		ORDER BY (normalized_name = $1) DESC
		LIMIT 1
	`, normalizedName, code)
}

func (t *Tx) ListCourts(ctx context.Context) ([]domain.Court, error) {
	var out []domain.Court
	if err := t.tx.SelectContext(ctx, &out, `
		SELECT `+courtColumns+` FROM courts WHERE is_active ORDER BY normalized_name
	`); err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	return out, nil
}

func (t *Tx) InsertCourt(ctx context.Context, c *domain.Court) (bool, error) {
	stampCreated(&c.CreatedAt)
	return t.insert(ctx, "court", `
		INSERT INTO courts (`+courtColumns+`)
		VALUES (:id, :court_name, :normalized_name, :court_code, :court_type, :is_active, :created_at)
		ON CONFLICT DO NOTHING
	`, c)
}

const judgeColumns = `id, full_name, normalized_name, first_name, last_name, is_active, created_at`

func (t *Tx) FindJudge(ctx context.Context, normalizedName, firstName, lastName string) (*domain.Judge, error) {
	return getOne[domain.Judge](ctx, t.tx, "judge", `
		SELECT `+judgeColumns+` FROM judges
		WHERE normalized_name = $1
		   OR ($2 <> '' AND $3 <> '' AND LOWER(first_name) = LOWER($2) AND LOWER(last_name) = LOWER($3))
		ORDER BY (normalized_name = $1) DESC
		LIMIT 1
	`, normalizedName, firstName, lastName)
}

func (t *Tx) InsertJudge(ctx context.Context, j *domain.Judge) (bool, error) {
	stampCreated(&j.CreatedAt)
	return t.insert(ctx, "judge", `
		INSERT INTO judges (`+judgeColumns+`)
		VALUES (:id, :full_name, :normalized_name, :first_name, :last_name, :is_active, :created_at)
		ON CONFLICT DO NOTHING
	`, j)
}

const caseTypeColumns = `id, case_type_name, normalized_name, case_type_code, is_active, created_at`

func (t *Tx) FindCaseType(ctx context.Context, normalizedName, code string) (*domain.CaseType, error) {
	return getOne[domain.CaseType](ctx, t.tx, "case type", `
		SELECT `+caseTypeColumns+` FROM case_types
		WHERE normalized_name = $1 OR case_type_code = $2
		ORDER BY (normalized_name = $1) DESC
		LIMIT 1
	`, normalizedName, code)
}

func (t *Tx) InsertCaseType(ctx context.Context, ct *domain.CaseType) (bool, error) {
	stampCreated(&ct.CreatedAt)
	return t.insert(ctx, "case type", `
		INSERT INTO case_types (`+caseTypeColumns+`)
		VALUES (:id, :case_type_name, :normalized_name, :case_type_code, :is_active, :created_at)
		ON CONFLICT DO NOTHING
	`, ct)
}

const caseColumns = `
	id, case_number, court_name, court_id, original_court_id, original_case_number,
	original_year, case_type_id, filed_date, male_applicant, female_applicant,
	organization_applicant, male_defendant, female_defendant, organization_defendant,
	status, has_legal_representation, last_activity_date, total_activities,
	created_by, created_at, updated_at`

func (t *Tx) FindCase(ctx context.Context, caseNumber, courtName string) (*domain.Case, error) {
	return getOne[domain.Case](ctx, t.tx, "case", `
		SELECT `+caseColumns+` FROM cases WHERE case_number = $1 AND court_name = $2
	`, caseNumber, courtName)
}

// InsertCase fails on a (case_number, court_name) conflict; the caller
// looked the case up in the same transaction.
func (t *Tx) InsertCase(ctx context.Context, c *domain.Case) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES (:id, :case_number, :court_name, :court_id, :original_court_id, :original_case_number,
		        :original_year, :case_type_id, :filed_date, :male_applicant, :female_applicant,
		        :organization_applicant, :male_defendant, :female_defendant, :organization_defendant,
		        :status, :has_legal_representation, :last_activity_date, :total_activities,
		        :created_by, :created_at, :updated_at)
	`, c)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (t *Tx) TouchCase(ctx context.Context, caseID string, hasLegalRep bool, lastActivity time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE cases SET
			total_activities = total_activities + 1,
			has_legal_representation = $2,
			last_activity_date = $3,
			updated_at = NOW()
		WHERE id = $1
	`, caseID, hasLegalRep, lastActivity)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	return expectRow(res, fmt.Errorf("update case %s: no rows affected", caseID))
}

func (t *Tx) AssignJudge(ctx context.Context, a domain.CaseJudgeAssignment) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO case_judge_assignments (case_id, judge_id, is_primary)
		VALUES (:case_id, :judge_id, :is_primary)
		ON CONFLICT (case_id, judge_id) DO NOTHING
	`, a)
	if err != nil {
		return fmt.Errorf("assign judge: %w", err)
	}
	return nil
}

func (t *Tx) ActivityExists(ctx context.Context, k domain.ActivityKey) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM case_activities
			WHERE case_id = $1 AND activity_date = $2 AND activity_type = $3 AND primary_judge_id = $4
		)
	`, k.CaseID, k.ActivityDate, k.ActivityType, k.PrimaryJudgeID)
	if err != nil {
		return false, fmt.Errorf("check activity: %w", err)
	}
	return exists, nil
}

func (t *Tx) InsertActivity(ctx context.Context, a *domain.CaseActivity) (bool, error) {
	return t.insert(ctx, "activity", `
		INSERT INTO case_activities (
			id, case_id, activity_date, activity_type, outcome, reason_for_adjournment,
			next_hearing_date, primary_judge_id, has_legal_representation, applicant_witnesses,
			defendant_witnesses, custody_status, details, import_batch_id, created_at)
		VALUES (
			:id, :case_id, :activity_date, :activity_type, :outcome, :reason_for_adjournment,
			:next_hearing_date, :primary_judge_id, :has_legal_representation, :applicant_witnesses,
			:defendant_witnesses, :custody_status, :details, :import_batch_id, :created_at)
		ON CONFLICT (case_id, activity_date, activity_type, primary_judge_id) DO NOTHING
	`, a)
}

func stampCreated(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}
