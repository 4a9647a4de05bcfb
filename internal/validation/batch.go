package validation

import (
	"fmt"

	"github.com/ignite/caseload-importer/internal/csvstream"
	"github.com/ignite/caseload-importer/internal/importerr"
)

// DefaultConsecutiveFailureLimit trips the early-failure breaker.
const DefaultConsecutiveFailureLimit = 10

// Breaker counts consecutive failures. A success resets the count.
type Breaker struct {
	limit       int
	consecutive int
}

// NewBreaker returns a breaker that trips after limit consecutive failures.
func NewBreaker(limit int) *Breaker {
	if limit <= 0 {
		limit = DefaultConsecutiveFailureLimit
	}
	return &Breaker{limit: limit}
}

// Success resets the consecutive count.
func (b *Breaker) Success() { b.consecutive = 0 }

// Failure records a failure and reports whether the breaker has tripped.
func (b *Breaker) Failure() bool {
	b.consecutive++
	return b.Tripped()
}

// Tripped reports whether the limit was reached.
func (b *Breaker) Tripped() bool { return b.consecutive >= b.limit }

// Consecutive is the current run of failures.
func (b *Breaker) Consecutive() int { return b.consecutive }

// Limit is the configured threshold.
func (b *Breaker) Limit() int { return b.limit }

// EarlyFailure builds the synthetic error recorded when a breaker trips.
func (b *Breaker) EarlyFailure(rowNumber int) *importerr.ImportError {
	return importerr.New(importerr.KindEarlyFailure, rowNumber, "",
		fmt.Sprintf("Stopped after %d consecutive failed rows", b.consecutive))
}

// BatchResult summarizes ValidateBatch.
type BatchResult struct {
	Valid     []*ValidatedRow
	Errors    []*importerr.ImportError
	Processed int
	Failed    int
	// Aborted is set when the breaker tripped; Err then wraps
	// importerr.ErrTooManyConsecutiveFailures.
	Aborted bool
	Err     error
}

// ValidateBatch validates records in order and stops once
// DefaultConsecutiveFailureLimit rows in a row have failed.
func (v *Validator) ValidateBatch(records []csvstream.Record) BatchResult {
	var res BatchResult
	breaker := NewBreaker(DefaultConsecutiveFailureLimit)

	for _, rec := range records {
		res.Processed++
		r := v.ValidateRow(rec.Fields, rec.Number)
		if r.IsValid {
			breaker.Success()
			res.Valid = append(res.Valid, r.Data)
			continue
		}
		res.Failed++
		res.Errors = append(res.Errors, r.Errors...)
		if breaker.Failure() {
			res.Errors = append(res.Errors, breaker.EarlyFailure(rec.Number))
			res.Aborted = true
			res.Err = fmt.Errorf("validation stopped at row %d: %w", rec.Number, importerr.ErrTooManyConsecutiveFailures)
			break
		}
	}
	return res
}
