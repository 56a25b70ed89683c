// Package postgres stores user documents in PostgreSQL through gorm, one
// row per (user, field).
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"budgetbuddy/internal/cloudsync"
)

// DocumentField is one field of a user's document.
type DocumentField struct {
	UserID    string    `gorm:"primaryKey;size:128"`
	Field     string    `gorm:"primaryKey;size:128"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (DocumentField) TableName() string { return "sync_documents" }

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ cloudsync.RemoteStore = (*Store)(nil)

// Open connects to dsn and migrates the documents table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db)
}

// New uses an existing gorm connection.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&DocumentField{}); err != nil {
		return nil, fmt.Errorf("migrate sync_documents: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, userID string) (cloudsync.Document, bool, error) {
	var rows []DocumentField
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("query document: %w", err)
	}
	doc := toDocument(rows)
	if len(doc) == 0 {
		return nil, false, nil
	}
	return doc, true, nil
}

func (s *Store) Merge(ctx context.Context, userID string, fields cloudsync.Document) error {
	fields = fields.Clone()
	now := s.now().UTC()
	fields[cloudsync.FieldLastSynced] = cloudsync.Timestamp(now)

	rows := toRows(userID, fields, now)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "field"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func toRows(userID string, fields cloudsync.Document, now time.Time) []DocumentField {
	rows := make([]DocumentField, 0, len(fields))
	for field, value := range fields {
		rows = append(rows, DocumentField{UserID: userID, Field: field, Value: string(value), UpdatedAt: now})
	}
	return rows
}

func toDocument(rows []DocumentField) cloudsync.Document {
	doc := make(cloudsync.Document, len(rows))
	for _, r := range rows {
		if !json.Valid([]byte(r.Value)) {
			continue
		}
		doc[r.Field] = json.RawMessage(r.Value)
	}
	return doc
}
