package masterdata

import "errors"

// Sentinel errors for the master-data service layer.
var (
	ErrInvalidName = errors.New("invalid master data name")
	ErrNotResolved = errors.New("master data record not found after insert conflict")
)
