// Package masterdata resolves the shared reference entities of an import
// (courts, judges and case types) from free-text CSV values.
//
// Every ExtractAndNormalize* call is idempotent: the same logical name, in
// any casing or spacing, always resolves to the same id. Names are validated,
// normalized (trimmed, whitespace collapsed, title-cased) and matched against
// existing records by normalized name or a secondary signal before a new
// record is created. Creation is an atomic insert-if-absent at the store, so
// two imports racing on the same new court converge on one row.
//
// The service depends only on the Tx interface in repository.go and never
// opens transactions itself.
package masterdata
