// Package postgres implements the persistence contract against PostgreSQL
// using sqlx over lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
	"github.com/ignite/caseload-importer/internal/repository"
	"github.com/ignite/caseload-importer/internal/service/batch"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Options configure the connection pool.
type Options struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a PostgreSQL-backed repository.Store.
type Store struct {
	db *sqlx.DB
}

var _ repository.Store = (*Store)(nil)

// Open connects and pings the database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	db, err := sqlx.Open("postgres", opts.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("[Postgres] connected", "max_open_conns", opts.MaxOpenConns)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

// DB exposes the handle for components sharing the pool.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Migrate applies the bundled schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("[Postgres] schema applied")
	return nil
}

// BeginTx starts a read-committed transaction.
func (s *Store) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

const batchColumns = `
	id, filename, file_size, file_checksum, total_records, successful_records,
	failed_records, duplicates_skipped, empty_rows_skipped, status, error_logs,
	failure_category, failure_reason, created_by, created_at, updated_at, completed_at`

// batchRow carries error_logs as raw JSONB.
type batchRow struct {
	domain.ImportBatch
	Logs []byte `db:"error_logs"`
}

func (r *batchRow) toDomain() (*domain.ImportBatch, error) {
	b := r.ImportBatch
	if len(r.Logs) > 0 {
		if err := json.Unmarshal(r.Logs, &b.ErrorLogs); err != nil {
			return nil, fmt.Errorf("decode error logs of batch %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func encodeLogs(logs []domain.ErrorLogEntry) ([]byte, error) {
	if logs == nil {
		logs = []domain.ErrorLogEntry{}
	}
	return json.Marshal(logs)
}

func (s *Store) CreateBatch(ctx context.Context, b *domain.ImportBatch) error {
	logs, err := encodeLogs(b.ErrorLogs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO import_batches (id, filename, file_size, file_checksum, status,
		                            error_logs, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.Filename, b.FileSize, b.FileChecksum, string(b.Status), logs, b.CreatedBy, b.CreatedAt, b.UpdatedAt)
	if isUniqueViolation(err) {
		return batch.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error) {
	var row batchRow
	err := s.db.GetContext(ctx, &row, `SELECT `+batchColumns+` FROM import_batches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, batch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return row.toDomain()
}

func (s *Store) FindBatchByChecksum(ctx context.Context, checksum string) (*domain.ImportBatch, error) {
	var row batchRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+batchColumns+` FROM import_batches
		WHERE file_checksum = $1
		ORDER BY created_at
		LIMIT 1
	`, checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find batch by checksum: %w", err)
	}
	return row.toDomain()
}

func (s *Store) UpdateBatchStatus(ctx context.Context, id string, status domain.BatchStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_batches SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return expectRow(res, batch.ErrNotFound)
}

func (s *Store) UpdateBatchStats(ctx context.Context, id string, st domain.BatchStats, completedAt *time.Time) error {
	logs, err := encodeLogs(st.ErrorLogs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_batches SET
			status = $2, total_records = $3, successful_records = $4, failed_records = $5,
			duplicates_skipped = $6, empty_rows_skipped = $7, error_logs = $8,
			failure_category = $9, failure_reason = $10, completed_at = $11, updated_at = NOW()
		WHERE id = $1
	`, id, string(st.Status), st.TotalRecords, st.SuccessfulRecords, st.FailedRecords,
		st.DuplicatesSkipped, st.EmptyRowsSkipped, logs,
		string(st.FailureCategory), st.FailureReason, completedAt)
	if err != nil {
		return fmt.Errorf("update batch stats: %w", err)
	}
	return expectRow(res, batch.ErrNotFound)
}

func (s *Store) ListBatches(ctx context.Context, limit int) ([]domain.ImportBatch, error) {
	var rows []batchRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+batchColumns+` FROM import_batches
		ORDER BY created_at DESC
		LIMIT $1
	`, limit); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	out := make([]domain.ImportBatch, 0, len(rows))
	for i := range rows {
		b, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func (s *Store) CountActivitiesByBatch(ctx context.Context, batchID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM case_activities WHERE import_batch_id = $1`, batchID); err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

const userColumns = `id, email, name, role, created_at`

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, batch.ErrUserNotFound
	}
	if err != nil {
		// Non-UUID ids are unknown users, not failures.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
			return nil, batch.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *Store) InsertUser(ctx context.Context, u *domain.User) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, email, name, role, created_at)
		VALUES (:id, :email, :name, :role, :created_at)
		ON CONFLICT (email) DO NOTHING
	`, u)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return affected(res)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func expectRow(res sql.Result, notFound error) error {
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}
