package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/service/batch"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

var batchCols = []string{
	"id", "filename", "file_size", "file_checksum", "total_records", "successful_records",
	"failed_records", "duplicates_skipped", "empty_rows_skipped", "status", "error_logs",
	"failure_category", "failure_reason", "created_by", "created_at", "updated_at", "completed_at",
}

func TestCreateBatch_DuplicateChecksum(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO import_batches").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.CreateBatch(context.Background(), &domain.ImportBatch{ID: "b1", Status: domain.BatchPending})
	assert.True(t, errors.Is(err, batch.ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatch_StoresEmptyLogArray(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO import_batches").
		WithArgs("b1", "daily.csv", int64(42), "abc", "PENDING", []byte("[]"), "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CreateBatch(context.Background(), &domain.ImportBatch{
		ID: "b1", Filename: "daily.csv", FileSize: 42, FileChecksum: "abc",
		Status: domain.BatchPending, CreatedBy: "u1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBatch(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	logs, _ := json.Marshal([]domain.ErrorLogEntry{{RowNumber: 3, ErrorType: "date_validation_error", Message: "Invalid month"}})

	mock.ExpectQuery("FROM import_batches WHERE id = \\$1").
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(batchCols).AddRow(
			"b1", "daily.csv", 42, "abc", 10, 9, 1, 0, 2, "COMPLETED", logs,
			"", "", "u1", now, now, now))

	b, err := s.GetBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, b.Status)
	assert.Equal(t, 9, b.SuccessfulRecords)
	assert.Equal(t, 2, b.EmptyRowsSkipped)
	require.Len(t, b.ErrorLogs, 1)
	assert.Equal(t, 3, b.ErrorLogs[0].RowNumber)
	require.NotNil(t, b.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBatch_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM import_batches").WillReturnRows(sqlmock.NewRows(batchCols))

	_, err := s.GetBatch(context.Background(), "missing")
	assert.True(t, errors.Is(err, batch.ErrNotFound))
}

func TestFindBatchByChecksum_None(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("WHERE file_checksum = \\$1").WithArgs("abc").WillReturnRows(sqlmock.NewRows(batchCols))

	b, err := s.FindBatchByChecksum(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestUpdateBatchStats(t *testing.T) {
	s, mock := newMock(t)
	done := time.Now().UTC()
	st := domain.BatchStats{
		Status: domain.BatchFailed, TotalRecords: 10, FailedRecords: 10,
		ErrorLogs:       []domain.ErrorLogEntry{{RowNumber: 1, ErrorType: "validation_error", Message: "bad"}},
		FailureCategory: domain.FailureValidation, FailureReason: "10 of 10 rows failed validation",
	}
	logs, _ := json.Marshal(st.ErrorLogs)

	mock.ExpectExec("UPDATE import_batches SET").
		WithArgs("b1", "FAILED", 10, 0, 10, 0, 0, logs, "validation_failure", st.FailureReason, &done).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateBatchStats(context.Background(), "b1", st, &done))

	mock.ExpectExec("UPDATE import_batches SET").WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.UpdateBatchStats(context.Background(), "gone", st, nil)
	assert.True(t, errors.Is(err, batch.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountActivitiesByBatch(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM case_activities").
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountActivitiesByBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestGetUser_InvalidID(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM users WHERE id").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := s.GetUser(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, batch.ErrUserNotFound))
}

func TestInsertUser_Conflict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := s.InsertUser(context.Background(), &domain.User{ID: "u1", Email: domain.SystemUserEmail})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSchemaHasNaturalKeys(t *testing.T) {
	assert.Contains(t, schema, "UNIQUE (case_number, court_name)")
	assert.Contains(t, schema, "UNIQUE (case_id, activity_date, activity_type, primary_judge_id)")
	assert.Contains(t, schema, "file_checksum       CHAR(64) NOT NULL UNIQUE")
}
