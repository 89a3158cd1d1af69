package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/notify"
	"github.com/unclebandit/pulse-scheduler/internal/queue"
)

func fastRetries(c *resty.Client) {
	c.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(2 * time.Millisecond)
}

func TestHTTPGatewayPostsEnvelope(t *testing.T) {
	var got notify.Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	gw := notify.NewHTTPGateway(srv.URL, zap.NewNop(), fastRetries)
	err := gw.Notify(context.Background(), model.MessageKindInvite, "a@x.io", map[string]any{"token": "t1"})
	require.NoError(t, err)

	assert.Equal(t, model.MessageKindInvite, got.Kind)
	assert.Equal(t, "a@x.io", got.Address)
	assert.Equal(t, "t1", got.Data["token"])
}

func TestHTTPGatewayServerErrorWithoutRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := notify.NewHTTPGateway(srv.URL, zap.NewNop(), func(c *resty.Client) { c.SetRetryCount(0) })
	err := gw.Notify(context.Background(), model.MessageKindReminder, "a@x.io", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPGatewayReportsClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	gw := notify.NewHTTPGateway(srv.URL, zap.NewNop(), fastRetries)
	err := gw.Notify(context.Background(), model.MessageKindReport, "boss@x.io", nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueueGatewayPublishesPerKindTopic(t *testing.T) {
	q := queue.NewInMemoryQueue(zap.NewNop())
	got := make(chan any, 1)
	require.NoError(t, q.Subscribe("notifications.quota_warning", func(p any) error {
		got <- p
		return nil
	}))

	gw := &notify.QueueGateway{Queue: q}
	require.NoError(t, gw.Notify(context.Background(), model.MessageKindQuotaWarning, "admin@x.io", map[string]any{"remaining": 3}))

	select {
	case p := <-got:
		env, ok := p.(notify.Envelope)
		require.True(t, ok)
		assert.Equal(t, "admin@x.io", env.Address)
		assert.Equal(t, 3, env.Data["remaining"])
	case <-time.After(time.Second):
		t.Fatal("envelope not published")
	}
}

func TestQueueGatewayFailsWithoutConsumer(t *testing.T) {
	gw := &notify.QueueGateway{Queue: queue.NewInMemoryQueue(zap.NewNop())}
	err := gw.Notify(context.Background(), model.MessageKindInvite, "a@x.io", nil)
	assert.Error(t, err)
}
