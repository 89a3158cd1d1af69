package queue_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/queue"
)

func newQueue() *queue.InMemoryQueue {
	q := queue.NewInMemoryQueue(zap.NewNop())
	q.RetryDelay = time.Millisecond
	return q
}

func TestPublishWithoutSubscribers(t *testing.T) {
	err := newQueue().Publish("notifications.invite", "x")
	assert.Error(t, err)
}

func TestPublishDeliversToEverySubscriber(t *testing.T) {
	q := newQueue()
	got := make(chan any, 2)
	for i := 0; i < 2; i++ {
		require.NoError(t, q.Subscribe("t", func(p any) error {
			got <- p
			return nil
		}))
	}

	require.NoError(t, q.Publish("t", "hello"))
	for i := 0; i < 2; i++ {
		select {
		case p := <-got:
			assert.Equal(t, "hello", p)
		case <-time.After(time.Second):
			t.Fatal("payload not delivered")
		}
	}
}

func TestFailedJobIsRetried(t *testing.T) {
	q := newQueue()
	var calls atomic.Int32
	done := make(chan struct{})
	require.NoError(t, q.Subscribe("t", func(any) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}))

	require.NoError(t, q.Publish("t", 1))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesStopAtMax(t *testing.T) {
	q := newQueue()
	q.MaxRetries = 2
	var calls atomic.Int32
	require.NoError(t, q.Subscribe("t", func(any) error {
		calls.Add(1)
		return errors.New("permanent")
	}))

	require.NoError(t, q.Publish("t", 1))
	assert.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}
