package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendNotification(t *testing.T) {
	var got MessagePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	dn := NewDiscordNotifier(zerolog.Nop(), srv.Client())
	err := dn.SendNotification(context.Background(), srv.URL, MessagePayload{Content: "hello", Username: "CallBridge"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "CallBridge", got.Username)
}

func TestSendNotificationEmptyURL(t *testing.T) {
	dn := NewDiscordNotifier(zerolog.Nop(), nil)
	assert.NoError(t, dn.SendNotification(context.Background(), "", MessagePayload{}))
	assert.Error(t, dn.SendNotification(context.Background(), "::not a url", MessagePayload{}))
}

func TestSendNotificationRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dn := NewDiscordNotifier(zerolog.Nop(), srv.Client()).WithRetry(2, time.Millisecond)
	require.NoError(t, dn.SendNotification(context.Background(), srv.URL, MessagePayload{Content: "x"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendNotificationNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	dn := NewDiscordNotifier(zerolog.Nop(), srv.Client()).WithRetry(3, time.Millisecond)
	err := dn.SendNotification(context.Background(), srv.URL, MessagePayload{Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}
