package importerr

import "errors"

// Sentinel errors for whole-run outcomes.
var (
	ErrDuplicateImport            = errors.New("file has already been imported")
	ErrEarlyValidationFailure     = errors.New("early validation failure")
	ErrTooManyConsecutiveFailures = errors.New("too many consecutive failures")
	ErrVerificationFailed         = errors.New("verification failed")
	ErrBatchNotFound              = errors.New("import batch not found")
	ErrNoDataRows                 = errors.New("no data rows found in file")
	// ErrFileChanged means the staged file no longer matches the checksum
	// the batch was created for.
	ErrFileChanged = errors.New("file contents changed since the import was queued")

	// ErrRetryable marks failures the job transport may retry.
	ErrRetryable = errors.New("retryable")
)

type retryableError struct{ err error }

func (e retryableError) Error() string        { return e.err.Error() }
func (e retryableError) Unwrap() error        { return e.err }
func (e retryableError) Is(target error) bool { return target == ErrRetryable }

// Retryable marks err as safe to retry. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool { return errors.Is(err, ErrRetryable) }
