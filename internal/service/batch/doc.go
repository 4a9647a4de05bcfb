// Package batch owns the ImportBatch lifecycle: creation, checksum-based
// duplicate detection, status and statistics updates, history, and the
// verification count used after a run.
//
// Any earlier batch with the same file checksum makes a new import a
// duplicate, whatever that batch's outcome was. A file that failed is still
// the same file and is not re-attempted without operator intervention.
package batch
