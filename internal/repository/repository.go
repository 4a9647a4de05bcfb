// Package repository defines the persistence contract shared by the import
// pipeline. Implementations live in the postgres and memstore subpackages.
package repository

import (
	"context"

	"github.com/ignite/caseload-importer/internal/service/batch"
	"github.com/ignite/caseload-importer/internal/service/cases"
)

// Tx is one all-or-nothing unit of work. Savepoints let a single row be
// undone without abandoning the rest of the transaction.
type Tx interface {
	cases.Tx

	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error

	Commit() error
	// Rollback is a no-op after Commit.
	Rollback() error
}

// Store is the entry point to persistence.
type Store interface {
	batch.Repository

	BeginTx(ctx context.Context) (Tx, error)
}
