package backend

import (
	"context"
	"errors"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/cloudsync"
	"budgetbuddy/internal/kv"
)

// CleanupFunc releases a resource opened by the factory.
type CleanupFunc func() error

// Result holds everything the factory opened. Remote and Publisher are nil
// when not configured.
type Result struct {
	Store     kv.Store
	Remote    cloudsync.RemoteStore
	Publisher *amqp.Client

	cleanups []CleanupFunc
}

func (r *Result) addCleanup(fn CleanupFunc) {
	if fn != nil {
		r.cleanups = append(r.cleanups, fn)
	}
}

// Close releases resources in reverse order of creation.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.cleanups = nil
	return errors.Join(errs...)
}

// Factory opens the configured backends.
type Factory interface {
	Create(ctx context.Context, cfg Config) (*Result, error)
}

type StoreType string

const (
	MemoryStore StoreType = "memory"
	SQLiteStore StoreType = "sqlite"
)

func (t StoreType) IsValid() bool {
	return t == MemoryStore || t == SQLiteStore
}

type RemoteType string

const (
	NoRemote       RemoteType = "none"
	MemoryRemote   RemoteType = "memory"
	SheetsRemote   RemoteType = "sheets"
	PostgresRemote RemoteType = "postgres"
)

func (t RemoteType) IsValid() bool {
	switch t {
	case NoRemote, MemoryRemote, SheetsRemote, PostgresRemote:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	Store        StoreType
	SQLiteDBPath string
	SeedFile     string

	Remote          RemoteType
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	PostgresDSN     string

	// AMQP is optional; a failed connection is logged and skipped.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}
