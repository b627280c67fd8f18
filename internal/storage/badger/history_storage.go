package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

// HistoryStorage persists terminal download records in Badger
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) *HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// SaveRecord upserts a download record keyed by job id.
func (s *HistoryStorage) SaveRecord(ctx context.Context, record *models.DownloadRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.JobID <= 0 {
		return fmt.Errorf("record job ID is required")
	}

	if err := s.db.Store().Upsert(record.JobID, record); err != nil {
		return fmt.Errorf("failed to save download record: %w", err)
	}
	return nil
}

// GetRecord retrieves a download record by job id.
func (s *HistoryStorage) GetRecord(ctx context.Context, jobID int) (*models.DownloadRecord, error) {
	var record models.DownloadRecord
	if err := s.db.Store().Get(jobID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("download record not found: %d", jobID)
		}
		return nil, fmt.Errorf("failed to get download record: %w", err)
	}
	return &record, nil
}

// ListRecords returns the most recent download records, newest first.
func (s *HistoryStorage) ListRecords(ctx context.Context, limit int) ([]*models.DownloadRecord, error) {
	query := badgerhold.Where("JobID").Gt(0).SortBy("CompletedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.DownloadRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list download records: %w", err)
	}

	result := make([]*models.DownloadRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
