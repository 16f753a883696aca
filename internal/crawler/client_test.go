package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notecrawl/internal/config"
	"notecrawl/internal/logger"
)

// recordingSleeper captures requested waits without blocking.
type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)

	return ctx.Err()
}

func newTestClient(t *testing.T, attempts int, sleeper *recordingSleeper) *Client {
	t.Helper()

	policy := config.RetryPolicy{MaxAttempts: attempts, DelayMs: 250, TimeoutSec: 5}

	return NewClient(policy, "test-agent", logger.Discard(), WithSleeper(sleeper.Sleep))
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	body, err := newTestClient(t, 3, sleeper).Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Empty(t, sleeper.waits)
}

func TestClient_Fetch_RetryBound(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	_, err := newTestClient(t, 4, sleeper).Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.ErrorIs(t, err, ErrUnexpectedStatusCode)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, srv.URL, exhausted.URL)

	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond}, sleeper.waits)
}

func TestClient_Fetch_RecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	_, err := newTestClient(t, 5, sleeper).Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, sleeper.waits, 2)
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	sleeper := &recordingSleeper{}
	_, err := newTestClient(t, 2, sleeper).Fetch(context.Background(), addr)

	require.ErrorIs(t, err, ErrRetryExhausted)
	assert.Len(t, sleeper.waits, 1)
}

func TestClient_Fetch_ContextCanceled(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, 5, &recordingSleeper{}).Fetch(ctx, srv.URL)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrRetryExhausted))
	assert.Zero(t, calls.Load())
}

func TestClient_FetchJSON_Malformed(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	var v map[string]any
	err := newTestClient(t, 3, &recordingSleeper{}).FetchJSON(context.Background(), srv.URL, &v)

	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(1), calls.Load(), "malformed bodies are not retried")
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), 0))
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
