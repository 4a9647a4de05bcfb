// Package domain holds the records an import reads and writes: batches,
// cases and their activities, courts, judges, case types, users and the job
// messages exchanged with the queue.
//
// Values here carry JSON and db tags and small pure helpers (status parsing,
// party totals) but no I/O. Nothing in this package imports another internal
// package, so every layer can depend on it.
package domain
