package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/cloudsync"
	remotemem "budgetbuddy/internal/cloudsync/remote/memory"
	"budgetbuddy/internal/cloudsync/remote/postgres"
	"budgetbuddy/internal/cloudsync/remote/sheets"
	"budgetbuddy/internal/kv"
	kvmem "budgetbuddy/internal/kv/memory"
	"budgetbuddy/internal/kv/sqlite"
	"budgetbuddy/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.For(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

var _ Factory = (*DefaultFactory)(nil)

// Create opens the store, the remote and, when configured, the AMQP
// publisher. On error everything opened so far is closed.
func (f *DefaultFactory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Result{}

	store, cleanup, err := f.CreateStore(cfg)
	if err != nil {
		return nil, err
	}
	res.Store = store
	res.addCleanup(cleanup)

	remote, cleanup, err := f.CreateRemote(ctx, cfg)
	if err != nil {
		res.Close()
		return nil, err
	}
	res.Remote = remote
	res.addCleanup(cleanup)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, mirroring in-process", log.FieldError, err)
		} else {
			res.Publisher = client
			res.addCleanup(client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}
	return res, nil
}

func (f *DefaultFactory) CreateStore(cfg Config) (kv.Store, CleanupFunc, error) {
	switch cfg.Store {
	case SQLiteStore:
		s, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", cfg.SQLiteDBPath)
		return s, s.Close, nil

	case MemoryStore:
		if cfg.SeedFile == "" {
			f.logger.Info("Initialized memory store")
			return kvmem.New(), nil, nil
		}
		s, err := kvmem.NewFromFile(cfg.SeedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed memory store: %w", err)
		}
		f.logger.Info("Initialized memory store", "seed_file", cfg.SeedFile)
		return s, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", cfg.Store)
	}
}

// CreateRemote returns a nil store for NoRemote.
func (f *DefaultFactory) CreateRemote(ctx context.Context, cfg Config) (cloudsync.RemoteStore, CleanupFunc, error) {
	switch cfg.Remote {
	case NoRemote, "":
		f.logger.Info("Cloud sync disabled")
		return nil, nil, nil

	case MemoryRemote:
		f.logger.Info("Initialized in-memory remote")
		return remotemem.New(), nil, nil

	case SheetsRemote:
		c, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.SpreadsheetID,
			SheetName:       cfg.SheetName,
			CredentialsJSON: cfg.CredentialsJSON,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Google Sheets remote: %w", err)
		}
		f.logger.Info("Initialized Google Sheets remote", "spreadsheet_id", cfg.SpreadsheetID)
		return c, nil, nil

	case PostgresRemote:
		s, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres remote: %w", err)
		}
		f.logger.Info("Initialized postgres remote")
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported remote type: %s", cfg.Remote)
	}
}
