package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document is one mirrored document in a relational database.
type Document struct {
	Collection string         `gorm:"size:50;primaryKey" json:"collection"`
	Key        string         `gorm:"column:doc_key;size:320;primaryKey" json:"key"`
	Body       datatypes.JSON `gorm:"not null" json:"body"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Document) TableName() string {
	return "mirror_documents"
}

// SQLMirror stores documents in a single table keyed by (collection, doc_key).
type SQLMirror struct {
	db *gorm.DB
}

// NewSQLMirror migrates the documents table and returns a mirror over db.
func NewSQLMirror(db *gorm.DB) (*SQLMirror, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, mirrorErr("migrate documents", err)
	}
	return &SQLMirror{db: db}, nil
}

func (m *SQLMirror) Upsert(ctx context.Context, collection, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return mirrorErr("encode document", err)
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	doc := Document{
		Collection: collection,
		Key:        key,
		Body:       datatypes.JSON(body),
		UpdatedAt:  time.Now().UTC(),
	}
	err = m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return mirrorErr("upsert", err)
	}
	return nil
}

func (m *SQLMirror) Get(ctx context.Context, collection, key string, dst any) (bool, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var doc Document
	err := m.db.WithContext(ctx).
		Where("collection = ? AND doc_key = ?", collection, key).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, mirrorErr("get", err)
	}
	if err := json.Unmarshal(doc.Body, dst); err != nil {
		return false, mirrorErr("decode document", err)
	}
	return true, nil
}

// Count returns the number of documents in a collection.
func (m *SQLMirror) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(&Document{}).Where("collection = ?", collection).Count(&n).Error
	return n, err
}

func (m *SQLMirror) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
