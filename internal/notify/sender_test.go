package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSenderDeliversMessage(t *testing.T) {
	var got pushMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=server-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewPushSender(server.URL, "server-key")
	err := sender.Send(context.Background(), "device-token", "Return reminder", "due soon",
		map[string]string{"borrow_id": "b1"})
	require.NoError(t, err)

	assert.Equal(t, "device-token", got.To)
	assert.Equal(t, "Return reminder", got.Notification.Title)
	assert.Equal(t, "due soon", got.Notification.Body)
	assert.Equal(t, "b1", got.Data["borrow_id"])
}

func TestPushSenderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewPushSender(server.URL, "server-key")
	err := sender.Send(context.Background(), "device-token", "t", "b", nil)
	assert.Error(t, err)
}

func TestPushSenderBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewPushSender(server.URL, "server-key")
	for i := 0; i < 5; i++ {
		assert.Error(t, sender.Send(context.Background(), "device-token", "t", "b", nil))
	}
	require.EqualValues(t, 5, hits.Load())

	// The breaker is open now: further sends fail without reaching the endpoint.
	assert.Error(t, sender.Send(context.Background(), "device-token", "t", "b", nil))
	assert.EqualValues(t, 5, hits.Load())
}
