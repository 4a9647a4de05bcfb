package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/caseload-importer/internal/csvstream"
	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importerr"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
	"github.com/ignite/caseload-importer/internal/repository"
	"github.com/ignite/caseload-importer/internal/service/batch"
	"github.com/ignite/caseload-importer/internal/service/masterdata"
	"github.com/ignite/caseload-importer/internal/validation"
)

const (
	sampleSize           = 5
	sampleFailureLimit   = 3
	rowSavepoint         = "import_row"
	maxDiagnosticSamples = 5
)

// ProcessOptions tune a Process call. Zero values take the defaults.
type ProcessOptions struct {
	ChunkSize int
	TxTimeout time.Duration
}

func (p ProcessOptions) withDefaults() ProcessOptions {
	if p.ChunkSize <= 0 {
		p.ChunkSize = DefaultChunkSize
	}
	if p.TxTimeout <= 0 {
		p.TxTimeout = DefaultTxTimeout
	}
	return p
}

// ProcessResult is the outcome of one run.
type ProcessResult struct {
	BatchID           string                 `json:"batchId"`
	Status            domain.BatchStatus     `json:"status"`
	TotalRecords      int                    `json:"totalRecords"`
	SuccessfulRecords int                    `json:"successfulRecords"`
	FailedRecords     int                    `json:"failedRecords"`
	DuplicatesSkipped int                    `json:"duplicatesSkipped"`
	EmptyRowsSkipped  int                    `json:"emptyRowsSkipped"`
	FailureCategory   domain.FailureCategory `json:"failureCategory,omitempty"`
	FailureReason     string                 `json:"failureReason,omitempty"`
	Message           string                 `json:"message,omitempty"`
	ErrorLogs         []domain.ErrorLogEntry `json:"errorLogs,omitempty"`
	MasterData        domain.MasterDataStats `json:"masterData"`
	Truncated         bool                   `json:"truncated,omitempty"`
	Duration          time.Duration          `json:"duration"`
}

// run is the mutable state of one Process call.
type run struct {
	batch     *domain.ImportBatch
	createdBy string
	opts      ProcessOptions
	tracker   *masterdata.Tracker
	breaker   *validation.Breaker
	started   time.Time

	dataRows   int
	emptyRows  int
	truncated  bool
	successful int
	failed     int
	duplicates int
	logs       []domain.ErrorLogEntry
	allValid   bool // every failure so far is a validation failure
	samples    []string
}

func (r *run) addErrors(errs ...*importerr.ImportError) {
	for _, e := range errs {
		if e.Category() != importerr.CategoryValidation {
			r.allValid = false
		}
		r.logs = batch.AppendErrorLogs(r.logs, e.LogEntry())
		if len(r.samples) < maxDiagnosticSamples {
			r.samples = append(r.samples, e.Error())
		}
	}
}

// Process runs a queued batch to completion. Errors wrapping
// importerr.ErrRetryable happened before the batch entered PROCESSING and
// may be retried; every other outcome is final and recorded on the batch.
// A returned error is accompanied by a result whenever the batch reached
// PROCESSING.
func (o *Orchestrator) Process(ctx context.Context, payload domain.JobPayload, opts ProcessOptions) (*ProcessResult, error) {
	b, err := o.batches.GetBatch(ctx, payload.BatchID)
	if errors.Is(err, importerr.ErrBatchNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, importerr.Retryable(fmt.Errorf("load batch %s: %w", payload.BatchID, err))
	}
	if b.Status.IsTerminal() {
		logger.Warn("[Importer] batch already finished, skipping", "batch_id", b.ID, "status", string(b.Status))
		return resultFromBatch(b), nil
	}
	if err := o.batches.UpdateBatchStatus(ctx, b.ID, domain.BatchProcessing); err != nil {
		return nil, importerr.Retryable(fmt.Errorf("mark batch %s processing: %w", b.ID, err))
	}

	r := &run{
		batch:     b,
		createdBy: payload.UserID,
		opts:      opts.withDefaults(),
		tracker:   masterdata.NewTracker(),
		breaker:   validation.NewBreaker(validation.DefaultConsecutiveFailureLimit),
		started:   o.now(),
		allValid:  true,
	}
	if r.createdBy == "" {
		r.createdBy = b.CreatedBy
	}
	log := logger.With("batch_id", b.ID, "filename", b.Filename)
	log.Info("[Importer] processing started")
	o.jobs.Start(ctx, b.ID)

	// The staged file must still be the one the batch was created for.
	sum, err := o.parser.Checksum(payload.FilePath)
	if err != nil {
		return o.abort(ctx, r, domain.FailureSystem, fmt.Errorf("checksum file: %w", err))
	}
	if sum != b.FileChecksum {
		return o.abort(ctx, r, domain.FailureFileChanged,
			fmt.Errorf("%w: batch %s expects %s, file has %s", importerr.ErrFileChanged, b.ID, b.FileChecksum, sum))
	}

	parsed, err := o.parser.ParseWithFiltering(ctx, payload.FilePath, csvstream.DefaultConfig())
	if err != nil {
		return o.abort(ctx, r, domain.FailureSystem, fmt.Errorf("parse file: %w", err))
	}
	r.dataRows = len(parsed.ValidRows)
	r.emptyRows = parsed.EmptyRowStats.TotalEmptyRows
	r.truncated = parsed.Truncated
	o.jobs.FileRead(ctx, b.ID, r.dataRows, r.emptyRows)
	log.Info("[Importer] file parsed", "data_rows", r.dataRows, "empty_rows", r.emptyRows, "truncated", r.truncated)

	if r.dataRows == 0 {
		return o.abort(ctx, r, domain.FailureNoDataRows, importerr.ErrNoDataRows)
	}

	if err := o.sampleCheck(r, parsed.ValidRows); err != nil {
		return o.abort(ctx, r, domain.FailureEarlyFailure, err)
	}

	for start := 0; start < r.dataRows; start += r.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, r, domain.FailureSystem, fmt.Errorf("import cancelled: %w", err))
		}
		end := start + r.opts.ChunkSize
		if end > r.dataRows {
			end = r.dataRows
		}
		if err := o.processChunk(ctx, r, parsed.ValidRows[start:end]); err != nil {
			return o.abort(ctx, r, domain.FailureEarlyFailure, err)
		}
		o.jobs.Chunk(ctx, b.ID, end, r.dataRows)
		log.Debug("[Importer] chunk done", "rows", end, "of", r.dataRows,
			"successful", r.successful, "failed", r.failed, "duplicates", r.duplicates)
	}

	return o.finalize(ctx, r)
}

// sampleCheck validates the first rows and fails the run when most of them
// are invalid.
func (o *Orchestrator) sampleCheck(r *run, rows []csvstream.Record) error {
	n := sampleSize
	if n > len(rows) {
		n = len(rows)
	}
	failures := 0
	var errs []*importerr.ImportError
	for _, rec := range rows[:n] {
		res := o.validator.ValidateRow(rec.Fields, rec.Number)
		if !res.IsValid {
			failures++
			errs = append(errs, res.Errors...)
		}
	}
	if failures >= sampleFailureLimit {
		r.addErrors(errs...)
		return fmt.Errorf("%d of the first %d rows are invalid: %w", failures, n, importerr.ErrEarlyValidationFailure)
	}
	return nil
}

type rowOutcome int

const (
	rowImported rowOutcome = iota
	rowDuplicate
	rowFailed
)

type chunkTotals struct {
	successful int
	failed     int
	duplicates int
	errs       []*importerr.ImportError
}

// processChunk applies rows in one transaction. Its counters only reach the
// run once the transaction has committed. A tripped breaker rolls the chunk
// back and ends the run.
func (o *Orchestrator) processChunk(ctx context.Context, r *run, rows []csvstream.Record) error {
	txCtx, cancel := context.WithTimeout(ctx, r.opts.TxTimeout)
	defer cancel()

	mark := r.tracker.Mark()
	tx, err := o.store.BeginTx(txCtx)
	if err != nil {
		o.failChunk(r, rows, fmt.Errorf("begin transaction: %w", err))
		return nil
	}
	defer tx.Rollback()

	var ct chunkTotals
	for _, rec := range rows {
		if err := txCtx.Err(); err != nil {
			r.tracker.Revert(mark)
			o.failChunk(r, rows, fmt.Errorf("transaction: %w", err))
			return nil
		}
		outcome, errs, fatal := o.processRow(txCtx, tx, r, rec)
		if fatal != nil {
			r.tracker.Revert(mark)
			o.failChunk(r, rows, fatal)
			return nil
		}
		switch outcome {
		case rowImported:
			ct.successful++
			r.breaker.Success()
		case rowDuplicate:
			ct.duplicates++
			r.breaker.Success()
		case rowFailed:
			ct.failed++
			ct.errs = append(ct.errs, errs...)
			if r.breaker.Failure() {
				r.tracker.Revert(mark)
				ct.errs = append(ct.errs, r.breaker.EarlyFailure(rec.Number))
				r.addErrors(ct.errs...)
				return fmt.Errorf("stopped at row %d: %w", rec.Number, importerr.ErrTooManyConsecutiveFailures)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		r.tracker.Revert(mark)
		o.failChunk(r, rows, fmt.Errorf("commit: %w", err))
		return nil
	}
	r.tracker.Commit()

	r.successful += ct.successful
	r.failed += ct.failed
	r.duplicates += ct.duplicates
	r.addErrors(ct.errs...)
	return nil
}

// failChunk records every row of a chunk whose transaction was lost.
func (o *Orchestrator) failChunk(r *run, rows []csvstream.Record, cause error) {
	logger.Error("[Importer] chunk rolled back", "batch_id", r.batch.ID,
		"first_row", rows[0].Number, "rows", len(rows), "error", cause)
	r.failed += len(rows)
	for _, rec := range rows {
		e := importerr.FromDatabase(cause, rec.Number)
		r.addErrors(e)
	}
}

// processRow validates and applies one row under its own savepoint. fatal is
// set when the transaction itself can no longer be used.
func (o *Orchestrator) processRow(ctx context.Context, tx repository.Tx, r *run, rec csvstream.Record) (rowOutcome, []*importerr.ImportError, error) {
	res := o.validator.ValidateRow(rec.Fields, rec.Number)
	if !res.IsValid {
		return rowFailed, res.Errors, nil
	}
	row := res.Data

	if err := tx.Savepoint(ctx, rowSavepoint); err != nil {
		return rowFailed, nil, fmt.Errorf("savepoint: %w", err)
	}
	rowMark := r.tracker.Mark()

	undo := func(cause error) (rowOutcome, []*importerr.ImportError, error) {
		r.tracker.Revert(rowMark)
		if err := tx.RollbackTo(ctx, rowSavepoint); err != nil {
			return rowFailed, nil, fmt.Errorf("rollback to savepoint: %w", err)
		}
		// ROLLBACK TO keeps the savepoint open; release it so rows do not stack them.
		if err := tx.Release(ctx, rowSavepoint); err != nil {
			return rowFailed, nil, fmt.Errorf("release savepoint: %w", err)
		}
		if cause == nil {
			return rowDuplicate, nil, nil
		}
		return rowFailed, []*importerr.ImportError{importerr.FromDatabase(cause, rec.Number)}, nil
	}

	dup, err := o.cases.IsDuplicateActivity(ctx, tx, row, r.tracker)
	if err != nil {
		return undo(err)
	}
	if dup {
		return undo(nil)
	}

	c, err := o.cases.CreateOrUpdateCase(ctx, tx, row, r.createdBy, r.tracker)
	if err != nil {
		return undo(err)
	}
	created, err := o.cases.CreateCaseActivity(ctx, tx, row, c.CaseID, r.batch.ID, r.tracker)
	if err != nil {
		return undo(err)
	}
	if !created {
		return undo(nil)
	}

	if err := tx.Release(ctx, rowSavepoint); err != nil {
		return rowFailed, nil, fmt.Errorf("release savepoint: %w", err)
	}
	return rowImported, nil, nil
}

func resultFromBatch(b *domain.ImportBatch) *ProcessResult {
	return &ProcessResult{
		BatchID:           b.ID,
		Status:            b.Status,
		TotalRecords:      b.TotalRecords,
		SuccessfulRecords: b.SuccessfulRecords,
		FailedRecords:     b.FailedRecords,
		DuplicatesSkipped: b.DuplicatesSkipped,
		EmptyRowsSkipped:  b.EmptyRowsSkipped,
		FailureCategory:   b.FailureCategory,
		FailureReason:     b.FailureReason,
		ErrorLogs:         b.ErrorLogs,
	}
}
