package batch

import (
	"errors"

	"github.com/ignite/caseload-importer/internal/importerr"
)

// Sentinel errors for the batch service layer.
var (
	ErrNotFound      = importerr.ErrBatchNotFound
	ErrDuplicate     = importerr.ErrDuplicateImport
	ErrInvalidStatus = errors.New("invalid batch status transition")
	ErrUserNotFound  = errors.New("user not found")
)
