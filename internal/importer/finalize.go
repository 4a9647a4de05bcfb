package importer

import (
	"context"
	"fmt"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importerr"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
)

// failureRateLimit is the share of failed data rows at which a run fails.
const failureRateLimit = 0.95

// outcome decides the terminal status and category of a run that went
// through the whole row loop.
func outcome(r *run) (domain.BatchStatus, domain.FailureCategory, string) {
	data := r.dataRows
	rate := 0.0
	if data > 0 {
		rate = float64(r.failed) / float64(data)
	}

	switch {
	case data > 0 && r.successful == 0 && r.duplicates == data:
		return domain.BatchFailed, domain.FailureAllDuplicates,
			fmt.Sprintf("All %d rows were already imported", data)
	case data > 0 && r.successful == 0, rate >= failureRateLimit:
		if r.failed > 0 && r.allValid {
			return domain.BatchFailed, domain.FailureValidation,
				fmt.Sprintf("%d of %d rows failed validation", r.failed, data)
		}
		return domain.BatchFailed, domain.FailureHighFailureRate,
			fmt.Sprintf("%d of %d rows failed (%.1f%%)", r.failed, data, rate*100)
	case r.duplicates > 0:
		return domain.BatchCompleted, domain.FailureDuplicatesWithSuccess,
			fmt.Sprintf("%d rows imported, %d duplicates skipped", r.successful, r.duplicates)
	}
	return domain.BatchCompleted, domain.FailureNone, ""
}

func (r *run) stats(status domain.BatchStatus, cat domain.FailureCategory, reason string) domain.BatchStats {
	return domain.BatchStats{
		Status:            status,
		TotalRecords:      r.dataRows,
		SuccessfulRecords: r.successful,
		FailedRecords:     r.failed,
		DuplicatesSkipped: r.duplicates,
		EmptyRowsSkipped:  r.emptyRows,
		ErrorLogs:         r.logs,
		FailureCategory:   cat,
		FailureReason:     reason,
	}
}

func (r *run) result(s domain.BatchStats, message string) *ProcessResult {
	return &ProcessResult{
		BatchID:           r.batch.ID,
		Status:            s.Status,
		TotalRecords:      s.TotalRecords,
		SuccessfulRecords: s.SuccessfulRecords,
		FailedRecords:     s.FailedRecords,
		DuplicatesSkipped: s.DuplicatesSkipped,
		EmptyRowsSkipped:  s.EmptyRowsSkipped,
		FailureCategory:   s.FailureCategory,
		FailureReason:     s.FailureReason,
		Message:           message,
		ErrorLogs:         s.ErrorLogs,
		MasterData:        r.tracker.Stats(),
		Truncated:         r.truncated,
	}
}

// finalize stores the run totals and then verifies them against the
// activities actually persisted for the batch.
func (o *Orchestrator) finalize(ctx context.Context, r *run) (*ProcessResult, error) {
	status, cat, reason := outcome(r)
	stats := r.stats(status, cat, reason)
	if err := o.batches.UpdateBatchWithStats(ctx, r.batch.ID, stats); err != nil {
		return o.abort(ctx, r, domain.FailureSystem, fmt.Errorf("save batch stats: %w", err))
	}

	if err := o.verify(ctx, r); err != nil {
		return o.verificationFailed(ctx, r, stats, err)
	}

	res := r.result(stats, summary(stats))
	res.Duration = o.now().Sub(r.started)
	logger.Info("[Importer] import finished", "batch_id", r.batch.ID, "status", string(status),
		"data_rows", r.dataRows, "successful", r.successful, "failed", r.failed,
		"duplicates", r.duplicates, "category", string(cat), "duration", res.Duration.String())

	progress := map[string]interface{}{
		"totalRecords":      stats.TotalRecords,
		"successfulRecords": stats.SuccessfulRecords,
		"failedRecords":     stats.FailedRecords,
		"duplicatesSkipped": stats.DuplicatesSkipped,
		"emptyRowsSkipped":  stats.EmptyRowsSkipped,
		"masterData":        res.MasterData,
	}
	if status == domain.BatchCompleted {
		o.jobs.Complete(ctx, r.batch.ID, res.Message, progress)
	} else {
		progress["failureCategory"] = string(cat)
		progress["sampleErrors"] = r.samples
		o.jobs.Fail(ctx, r.batch.ID, res.Message, progress)
	}
	o.writeReport(ctx, r, res)
	return res, nil
}

// verify counts persisted activities for the batch. An unreadable count is
// treated as a mismatch.
func (o *Orchestrator) verify(ctx context.Context, r *run) error {
	n, err := o.batches.CountPersistedActivities(ctx, r.batch.ID)
	if err != nil {
		return fmt.Errorf("%w: count activities: %v", importerr.ErrVerificationFailed, err)
	}
	if n != r.successful {
		return fmt.Errorf("%w: expected %d activities, found %d",
			importerr.ErrVerificationFailed, r.successful, n)
	}
	return nil
}

// verificationFailed marks the batch FAILED while keeping the computed
// counters.
func (o *Orchestrator) verificationFailed(ctx context.Context, r *run, stats domain.BatchStats, cause error) (*ProcessResult, error) {
	ctx = context.WithoutCancel(ctx)
	logger.Error("[Importer] verification failed", "batch_id", r.batch.ID, "error", cause)

	stats.Status = domain.BatchFailed
	stats.FailureCategory = domain.FailureVerification
	stats.FailureReason = cause.Error()
	o.markFailed(ctx, r.batch.ID, stats)

	msg := importerr.UserMessage(cause)
	o.jobs.VerificationFailed(ctx, r.batch.ID, msg, map[string]interface{}{
		"error":             cause.Error(),
		"successfulRecords": stats.SuccessfulRecords,
	})

	res := r.result(stats, msg)
	res.Duration = o.now().Sub(r.started)
	o.writeReport(ctx, r, res)
	return res, cause
}

// abort ends a run early. The batch is marked FAILED with every row that
// did not succeed and was not a duplicate counted as failed.
func (o *Orchestrator) abort(ctx context.Context, r *run, cat domain.FailureCategory, cause error) (*ProcessResult, error) {
	ctx = context.WithoutCancel(ctx)
	failed := r.dataRows - r.successful - r.duplicates
	if failed < 0 {
		failed = 0
	}
	r.failed = failed

	msg := importerr.UserMessage(cause)
	logger.Error("[Importer] import aborted", "batch_id", r.batch.ID, "category", string(cat),
		"successful", r.successful, "failed", failed, "error", cause)

	stats := r.stats(domain.BatchFailed, cat, msg)
	o.markFailed(ctx, r.batch.ID, stats)
	o.jobs.Fail(ctx, r.batch.ID, msg, map[string]interface{}{
		"error":           cause.Error(),
		"errorCategory":   string(importerr.Categorize(cause)),
		"failureCategory": string(cat),
		"sampleErrors":    r.samples,
	})

	res := r.result(stats, msg)
	res.Duration = o.now().Sub(r.started)
	o.writeReport(ctx, r, res)
	return res, cause
}

// markFailed is best effort: the batch may be unreachable for the same
// reason the run failed.
func (o *Orchestrator) markFailed(ctx context.Context, batchID string, stats domain.BatchStats) {
	ctx = context.WithoutCancel(ctx)
	if err := o.batches.UpdateBatchWithStats(ctx, batchID, stats); err != nil {
		logger.Error("[Importer] could not mark batch failed", "batch_id", batchID, "error", err)
	}
}

func (o *Orchestrator) writeReport(ctx context.Context, r *run, res *ProcessResult) {
	if o.reports == nil {
		return
	}
	rep := &Report{
		BatchID:     r.batch.ID,
		Filename:    r.batch.Filename,
		Checksum:    r.batch.FileChecksum,
		Result:      res,
		Diagnostics: r.samples,
		GeneratedAt: o.now().UTC(),
	}
	if err := o.reports.WriteReport(ctx, rep); err != nil {
		logger.Warn("[Importer] report not written", "batch_id", r.batch.ID, "error", err)
	}
}

func summary(s domain.BatchStats) string {
	if s.Status == domain.BatchFailed {
		return fmt.Sprintf("Import failed: %s", s.FailureReason)
	}
	msg := fmt.Sprintf("Imported %d of %d rows", s.SuccessfulRecords, s.TotalRecords)
	if s.FailedRecords > 0 {
		msg += fmt.Sprintf(", %d failed", s.FailedRecords)
	}
	if s.DuplicatesSkipped > 0 {
		msg += fmt.Sprintf(", %d duplicates skipped", s.DuplicatesSkipped)
	}
	return msg
}
