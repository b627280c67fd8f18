package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var mu sync.Mutex
	received := 0
	handler := func(ctx context.Context, event Event) error {
		mu.Lock()
		received++
		mu.Unlock()
		return nil
	}

	require.NoError(t, service.Subscribe(EventJobCompleted, handler))
	require.NoError(t, service.Subscribe(EventJobCompleted, handler))

	require.NoError(t, service.Publish(context.Background(), Event{Type: EventJobCompleted}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received == 2
	}, time.Second, time.Millisecond)
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	service := NewService(arbor.NewLogger())
	assert.NoError(t, service.Publish(context.Background(), Event{Type: EventJobProgress}))
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())
	assert.Error(t, service.Subscribe(EventJobStarted, nil))
}

func TestPublishSyncCollectsHandlerErrors(t *testing.T) {
	service := NewService(arbor.NewLogger())

	require.NoError(t, service.Subscribe(EventJobFailed, func(ctx context.Context, event Event) error {
		return fmt.Errorf("handler broke")
	}))
	require.NoError(t, service.Subscribe(EventJobFailed, func(ctx context.Context, event Event) error {
		return nil
	}))

	err := service.PublishSync(context.Background(), Event{Type: EventJobFailed})
	assert.Error(t, err)
}

func TestPublishOnlyMatchingType(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var mu sync.Mutex
	var got []EventType
	require.NoError(t, service.Subscribe(EventJobProgress, func(ctx context.Context, event Event) error {
		mu.Lock()
		got = append(got, event.Type)
		mu.Unlock()
		return nil
	}))

	require.NoError(t, service.PublishSync(context.Background(), Event{Type: EventJobProgress}))
	require.NoError(t, service.PublishSync(context.Background(), Event{Type: EventJobCancelled}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventJobProgress}, got)
}

func TestCloseDropsSubscribers(t *testing.T) {
	service := NewService(arbor.NewLogger())

	called := false
	require.NoError(t, service.Subscribe(EventJobStarted, func(ctx context.Context, event Event) error {
		called = true
		return nil
	}))
	require.NoError(t, service.Close())

	require.NoError(t, service.PublishSync(context.Background(), Event{Type: EventJobStarted}))
	assert.False(t, called)
}
