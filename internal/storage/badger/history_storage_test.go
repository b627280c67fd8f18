package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/common"
	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

func newTestHistoryStorage(t *testing.T) *HistoryStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHistoryStorage(db, logger)
}

func record(jobID int, status models.JobStatus, completedAt time.Time) *models.DownloadRecord {
	return &models.DownloadRecord{
		JobID:              jobID,
		Kind:               models.JobKindDaily,
		Status:             status,
		ProgressPercentage: 100,
		ProcessedRecords:   jobID * 100,
		CompletedAt:        completedAt,
	}
}

func TestHistoryStorage_SaveAndGet(t *testing.T) {
	storage := newTestHistoryStorage(t)
	ctx := context.Background()

	saved := record(42, models.JobStatusCompleted, time.Now())
	saved.UnitErrors = []models.UnitError{{UnitKey: "HDFC", Message: "timeout"}}
	require.NoError(t, storage.SaveRecord(ctx, saved))

	got, err := storage.GetRecord(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 4200, got.ProcessedRecords)
	require.Len(t, got.UnitErrors, 1)
	assert.Equal(t, "HDFC", got.UnitErrors[0].UnitKey)
}

func TestHistoryStorage_SaveIsUpsert(t *testing.T) {
	storage := newTestHistoryStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveRecord(ctx, record(1, models.JobStatusFailed, time.Now())))
	require.NoError(t, storage.SaveRecord(ctx, record(1, models.JobStatusCompleted, time.Now())))

	got, err := storage.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
}

func TestHistoryStorage_SaveRejectsInvalidRecords(t *testing.T) {
	storage := newTestHistoryStorage(t)
	ctx := context.Background()

	assert.Error(t, storage.SaveRecord(ctx, nil))
	assert.Error(t, storage.SaveRecord(ctx, &models.DownloadRecord{}))
}

func TestHistoryStorage_GetMissingRecord(t *testing.T) {
	storage := newTestHistoryStorage(t)

	_, err := storage.GetRecord(context.Background(), 999)
	assert.Error(t, err)
}

func TestHistoryStorage_ListRecordsNewestFirst(t *testing.T) {
	storage := newTestHistoryStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 3; i++ {
		require.NoError(t, storage.SaveRecord(ctx, record(i, models.JobStatusCompleted, base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := storage.ListRecords(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].JobID)
	assert.Equal(t, 2, records[1].JobID)
}
