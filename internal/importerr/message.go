package importerr

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// UserMessage returns one operator-facing sentence for a failed run.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, ErrEarlyValidationFailure) || strings.Contains(msg, "early validation failure"):
		return "Import stopped early because most of the first rows failed validation. Check that the file uses the expected column layout."
	case errors.Is(err, ErrTooManyConsecutiveFailures) || strings.Contains(msg, "consecutive"):
		return "Import stopped after too many consecutive row errors. Review the error log for the first failing rows."
	case errors.Is(err, ErrDuplicateImport) || strings.Contains(msg, "already been imported"):
		return "This file has already been imported."
	case errors.Is(err, ErrNoDataRows):
		return "The file contains no data rows."
	case errors.Is(err, ErrVerificationFailed):
		return "Import finished but the saved records did not match the expected count. The batch has been marked as failed."
	case errors.Is(err, ErrFileChanged):
		return "The file changed after it was queued. Upload it again to import the new contents."
	case isConnectivity(msg):
		return "The database could not be reached. Try the import again later."
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return "The import timed out. Try again with a smaller file."
	case isDateError(err, msg):
		return "The file contains invalid dates. Dates need a day (1-31), a 3-letter month and a 4-digit year."
	case isKind(err, KindMissingFields) || strings.Contains(msg, "missing column") || strings.Contains(msg, "is required"):
		return "The file is missing required columns or values."
	default:
		return "The import failed due to an unexpected error. Contact support with the batch id."
	}
}

// isDateError matches date validation failures only. Substrings like
// "update" or a file name must not count.
func isDateError(err error, msg string) bool {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind == KindDate
	}
	return strings.Contains(msg, "invalid date")
}

func isKind(err error, k Kind) bool {
	var ie *ImportError
	return errors.As(err, &ie) && ie.Kind == k
}

func isConnectivity(msg string) bool {
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial tcp")
}

// Categorize assigns any error to a coarse category.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Category()
	}
	switch {
	case errors.Is(err, ErrEarlyValidationFailure), errors.Is(err, ErrTooManyConsecutiveFailures):
		return CategoryValidation
	case errors.Is(err, ErrDuplicateImport), errors.Is(err, ErrBatchNotFound),
		errors.Is(err, ErrNoDataRows), errors.Is(err, ErrVerificationFailed):
		return CategoryBusiness
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return CategoryDatabase
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "validation") || strings.Contains(msg, "invalid"):
		return CategoryValidation
	case isConnectivity(msg) ||
		strings.Contains(msg, "sql") ||
		strings.Contains(msg, "pq:") ||
		strings.Contains(msg, "database") ||
		strings.Contains(msg, "transaction"):
		return CategoryDatabase
	default:
		return CategorySystem
	}
}
