// Package importer coordinates a court extract import from file to
// verified batch.
//
// Initiate checksums the file, rejects files that were imported before,
// creates a PENDING batch and enqueues it. Process runs the batch:
//
//	PENDING -> PROCESSING -> COMPLETED | FAILED
//
// The file is parsed and filtered, the first rows are sample-validated, and
// the remaining rows are applied in fixed-size chunks. Each chunk is one
// transaction and each row inside it has its own savepoint, so a failing row
// is undone on its own while the rest of the chunk commits. Chunks run
// sequentially because later chunks depend on master data and activities
// written by earlier ones. Finalization derives the batch status from the
// failure rate over data rows, and a verification pass recounts the
// persisted activities before the run is reported as successful.
package importer
