package domain

import "time"

// BatchStatus is the lifecycle state of an ImportBatch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "PENDING"
	BatchProcessing BatchStatus = "PROCESSING"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are expected.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// BatchStatusFrom parses a stored status, defaulting to PENDING.
func BatchStatusFrom(s string) BatchStatus {
	switch BatchStatus(s) {
	case BatchProcessing, BatchCompleted, BatchFailed:
		return BatchStatus(s)
	}
	return BatchPending
}

// FailureCategory explains why a batch finished the way it did.
type FailureCategory string

const (
	FailureNone                  FailureCategory = ""
	FailureAllDuplicates         FailureCategory = "all_duplicates"
	FailureDuplicatesWithSuccess FailureCategory = "duplicates_with_success"
	FailureValidation            FailureCategory = "validation_failure"
	FailureHighFailureRate       FailureCategory = "high_failure_rate"
	FailureNoDataRows            FailureCategory = "no_data_rows"
	FailureEarlyFailure          FailureCategory = "early_failure"
	FailureSystem                FailureCategory = "system_error"
	FailureVerification          FailureCategory = "verification_failure"
	FailureFileChanged           FailureCategory = "file_changed"
)

// MaxErrorLogs bounds the error summary persisted on a batch.
const MaxErrorLogs = 50

// ErrorLogEntry is one row-level failure kept on the batch for auditing.
type ErrorLogEntry struct {
	RowNumber  int    `json:"row_number"`
	ErrorType  string `json:"error_type"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	RawValue   string `json:"raw_value,omitempty"`
}

// ImportBatch is one execution of importing a single CSV file.
type ImportBatch struct {
	ID                string          `json:"id" db:"id"`
	Filename          string          `json:"filename" db:"filename"`
	FileSize          int64           `json:"file_size" db:"file_size"`
	FileChecksum      string          `json:"file_checksum" db:"file_checksum"`
	TotalRecords      int             `json:"total_records" db:"total_records"`
	SuccessfulRecords int             `json:"successful_records" db:"successful_records"`
	FailedRecords     int             `json:"failed_records" db:"failed_records"`
	DuplicatesSkipped int             `json:"duplicates_skipped" db:"duplicates_skipped"`
	EmptyRowsSkipped  int             `json:"empty_rows_skipped" db:"empty_rows_skipped"`
	Status            BatchStatus     `json:"status" db:"status"`
	ErrorLogs         []ErrorLogEntry `json:"error_logs,omitempty" db:"-"`
	FailureCategory   FailureCategory `json:"failure_category,omitempty" db:"failure_category"`
	FailureReason     string          `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedBy         string          `json:"created_by" db:"created_by"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// BatchStats is the combined terminal update applied to a batch.
type BatchStats struct {
	Status            BatchStatus
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	DuplicatesSkipped int
	EmptyRowsSkipped  int
	ErrorLogs         []ErrorLogEntry
	FailureCategory   FailureCategory
	FailureReason     string
}
