package cases

import "errors"

// Sentinel errors for the case service layer.
var (
	ErrMissingCaseFields     = errors.New("case identification, filed date and case type are required")
	ErrMissingActivityFields = errors.New("activity date and primary judge are required")
)
