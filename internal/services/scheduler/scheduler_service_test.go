package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/models"
)

type fakeDailyTrigger struct {
	mu     sync.Mutex
	result *models.DailyTriggerResult
	err    error
	panics bool
	calls  int
}

func (f *fakeDailyTrigger) StartDaily(ctx context.Context) (*models.DailyTriggerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("trigger blew up")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestStart_RejectsInvalidCronExpression(t *testing.T) {
	service := NewService(&fakeDailyTrigger{}, arbor.NewLogger())
	assert.Error(t, service.Start("not a cron expression"))
}

func TestStart_SecondStartFails(t *testing.T) {
	service := NewService(&fakeDailyTrigger{}, arbor.NewLogger())
	defer service.Stop()

	require.NoError(t, service.Start("0 30 21 * * *"))
	assert.Error(t, service.Start("0 30 21 * * *"))
}

func TestStop_WithoutStartIsNoOp(t *testing.T) {
	service := NewService(&fakeDailyTrigger{}, arbor.NewLogger())
	service.Stop()
	service.Stop()
}

func TestRunDailyDownload_RecordsLastRun(t *testing.T) {
	trigger := &fakeDailyTrigger{result: &models.DailyTriggerResult{JobID: 42}}
	service := NewService(trigger, arbor.NewLogger())

	service.runDailyDownload()

	lastRun, lastError := service.LastRun()
	require.NotNil(t, lastRun)
	assert.Empty(t, lastError)
	assert.Equal(t, 1, trigger.calls)
}

func TestRunDailyDownload_RecordsTriggerFailure(t *testing.T) {
	trigger := &fakeDailyTrigger{err: errors.New("backend unavailable")}
	service := NewService(trigger, arbor.NewLogger())

	service.runDailyDownload()

	lastRun, lastError := service.LastRun()
	require.NotNil(t, lastRun)
	assert.Equal(t, "backend unavailable", lastError)
}

func TestRunDailyDownload_FailureClearedOnNextSuccess(t *testing.T) {
	trigger := &fakeDailyTrigger{err: errors.New("backend unavailable")}
	service := NewService(trigger, arbor.NewLogger())

	service.runDailyDownload()

	trigger.mu.Lock()
	trigger.err = nil
	trigger.result = &models.DailyTriggerResult{JobID: 7, AlreadyExists: true}
	trigger.mu.Unlock()

	service.runDailyDownload()

	_, lastError := service.LastRun()
	assert.Empty(t, lastError)
}

func TestRunDailyDownload_SurvivesPanic(t *testing.T) {
	trigger := &fakeDailyTrigger{panics: true}
	service := NewService(trigger, arbor.NewLogger())

	assert.NotPanics(t, service.runDailyDownload)
}
