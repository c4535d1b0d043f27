package datastore

import (
	"context"

	"gorm.io/gorm"
)

type contextKey int

// ContextKeyTransaction is where the per-request gorm transaction lives.
const ContextKeyTransaction contextKey = iota

// Store abstracts the metadata database so tests can swap the driver.
type Store interface {
	// Open the database connection pool.
	Open() error
	Close()

	// CreateTransaction begins a transaction and stashes it in the context.
	CreateTransaction(ctx context.Context) context.Context
	// GetTransaction returns the transaction stashed in the context, nil if absent.
	GetTransaction(ctx context.Context) *gorm.DB

	// WithNewTransaction runs f inside a fresh transaction, committing on nil
	// and rolling back on error.
	WithNewTransaction(f func(ctx context.Context) error) error
	// WithTransaction runs f in the context's transaction, starting one if needed.
	WithTransaction(ctx context.Context, f func(ctx context.Context) error) error

	GetDB() *gorm.DB
	AutoMigrate() error
}

var instance Store = &postgresStore{}

func GetStore() Store {
	return instance
}
