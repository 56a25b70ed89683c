package backend

import (
	"errors"
	"fmt"

	"budgetbuddy/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Store:        StoreType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedFile:     appConfig.SeedFile,

		Remote:          RemoteType(appConfig.RemoteBackend),
		SpreadsheetID:   appConfig.GoogleSpreadsheetID,
		SheetName:       appConfig.GoogleBackupSheetName,
		CredentialsJSON: appConfig.GoogleServiceAccount,
		CredentialsFile: appConfig.GoogleServiceFile,
		PostgresDSN:     appConfig.PostgresDSN,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}
	if cfg.Remote == "" {
		cfg.Remote = NoRemote
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Store)
	}
	if c.Store == SQLiteStore && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite store")
	}
	// The sync worker reads the same store from another process.
	if c.Store == MemoryStore && c.AMQPURL != "" {
		return errors.New("AMQP mirroring requires the sqlite store: a memory store is not shared with the sync worker")
	}

	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote type: %s", c.Remote)
	}
	switch c.Remote {
	case SheetsRemote:
		if c.SpreadsheetID == "" {
			return errors.New("spreadsheet ID is required for sheets remote")
		}
		if c.CredentialsJSON == "" && c.CredentialsFile == "" {
			return errors.New("service account credentials are required for sheets remote")
		}
	case PostgresRemote:
		if c.PostgresDSN == "" {
			return errors.New("postgres DSN is required for postgres remote")
		}
	}
	return nil
}
