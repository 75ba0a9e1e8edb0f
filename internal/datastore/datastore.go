// Package datastore tracks processed paper uploads in a local SQLite
// database, so re-ingesting a PDF that was already processed can be
// detected without listing the buckets.
package datastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/diatomlab/diatom-annotator/internal/errors"
	"github.com/diatomlab/diatom-annotator/internal/logging"
)

var logger = logging.ForService("datastore")

// PaperUpload is one tracked PDF ingest.
type PaperUpload struct {
	ID          uint   `gorm:"primaryKey"`
	UploadID    string `gorm:"uniqueIndex;size:36"`
	PDFURL      string `gorm:"index"`
	Filename    string
	FileHash    string `gorm:"index;size:64"`
	TotalImages int
	Processed   bool
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Interface abstracts the upload tracker for handlers and commands.
type Interface interface {
	Open() error
	Close() error
	SaveUpload(upload *PaperUpload) error
	GetUpload(uploadID string) (*PaperUpload, error)
	GetUploadByHash(fileHash string) (*PaperUpload, error)
	ListUploads(limit int) ([]PaperUpload, error)
	MarkProcessed(uploadID string) error
}

// SQLiteStore implements Interface on a SQLite database file.
type SQLiteStore struct {
	path string
	db   *gorm.DB
}

// New creates a store for the given database path. Call Open before use.
func New(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Open connects to the database and migrates the schema.
func (s *SQLiteStore) Open() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return s.wrap(err, "open")
	}
	if err := db.AutoMigrate(&PaperUpload{}); err != nil {
		return s.wrap(err, "migrate")
	}
	s.db = db
	logger.Info("upload tracker opened", "path", s.path)
	return nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.wrap(err, "close")
	}
	return sqlDB.Close()
}

// SaveUpload inserts a new upload record, assigning an upload ID when the
// caller did not.
func (s *SQLiteStore) SaveUpload(upload *PaperUpload) error {
	if upload.UploadID == "" {
		upload.UploadID = uuid.New().String()
	}
	if err := s.db.Create(upload).Error; err != nil {
		return s.wrap(err, "save_upload")
	}
	return nil
}

// GetUpload fetches an upload by its upload ID. A missing record yields
// (nil, nil).
func (s *SQLiteStore) GetUpload(uploadID string) (*PaperUpload, error) {
	var upload PaperUpload
	err := s.db.Where("upload_id = ?", uploadID).First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap(err, "get_upload")
	}
	return &upload, nil
}

// GetUploadByHash fetches the most recent upload of a file hash. A missing
// record yields (nil, nil).
func (s *SQLiteStore) GetUploadByHash(fileHash string) (*PaperUpload, error) {
	var upload PaperUpload
	err := s.db.Where("file_hash = ?", fileHash).Order("id DESC").First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap(err, "get_upload_by_hash")
	}
	return &upload, nil
}

// ListUploads returns the newest uploads, up to limit.
func (s *SQLiteStore) ListUploads(limit int) ([]PaperUpload, error) {
	if limit <= 0 {
		limit = 100
	}
	var uploads []PaperUpload
	if err := s.db.Order("id DESC").Limit(limit).Find(&uploads).Error; err != nil {
		return nil, s.wrap(err, "list_uploads")
	}
	return uploads, nil
}

// MarkProcessed flags an upload as processed and stamps the time.
func (s *SQLiteStore) MarkProcessed(uploadID string) error {
	now := time.Now()
	result := s.db.Model(&PaperUpload{}).
		Where("upload_id = ?", uploadID).
		Updates(map[string]any{"processed": true, "processed_at": &now})
	if result.Error != nil {
		return s.wrap(result.Error, "mark_processed")
	}
	if result.RowsAffected == 0 {
		return errors.Newf("upload %q not found", uploadID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

func (s *SQLiteStore) wrap(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("path", s.path).
		Build()
}
