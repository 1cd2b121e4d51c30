package infrastructure

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// SQLiteJobRepository implements JobRepository using SQLite
type SQLiteJobRepository struct {
	db *gorm.DB
}

// NewSQLiteJobRepository opens the job history at dbPath. An empty path keeps
// the history in a private in-memory database that lives as long as the process.
func NewSQLiteJobRepository(dbPath string) (*SQLiteJobRepository, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = fmt.Sprintf("file:history-%s?mode=memory&cache=shared", uuid.New().String())
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.JobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteJobRepository{db: db}, nil
}

// Create stores a new record
func (r *SQLiteJobRepository) Create(record *domain.JobRecord) error {
	return r.db.Create(record).Error
}

// Update saves an existing record
func (r *SQLiteJobRepository) Update(record *domain.JobRecord) error {
	return r.db.Save(record).Error
}

// FindByID finds a record by job id
func (r *SQLiteJobRepository) FindByID(id string) (*domain.JobRecord, error) {
	var record domain.JobRecord
	err := r.db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindBySession lists a session's records, newest first
func (r *SQLiteJobRepository) FindBySession(sessionID string) ([]*domain.JobRecord, error) {
	var records []*domain.JobRecord
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC, rowid DESC").
		Find(&records).Error
	return records, err
}

// FindCompleted returns the newest completed record for a selection
func (r *SQLiteJobRepository) FindCompleted(sessionID string, sel domain.Selection) (*domain.JobRecord, error) {
	var records []*domain.JobRecord
	err := r.db.Where("session_id = ? AND url = ? AND kind = ? AND video_id = ? AND audio_id = ? AND container = ? AND status = ?",
		sessionID, sel.URL, sel.Kind, sel.VideoID, sel.AudioID, sel.Container, domain.JobCompleted).
		Order("created_at DESC, rowid DESC").
		Limit(1).
		Find(&records).Error
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// DeleteBySession removes all records of a session
func (r *SQLiteJobRepository) DeleteBySession(sessionID string) error {
	return r.db.Where("session_id = ?", sessionID).Delete(&domain.JobRecord{}).Error
}

// Close closes the database connection
func (r *SQLiteJobRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
