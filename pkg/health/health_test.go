package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		code   int
		body   string
	}{
		{
			name:   "NoChecks",
			checks: nil,
			code:   http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "AllPassing",
			checks: map[string]CheckFunc{"a": passing(), "b": passing()},
			code:   http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "OneFailing",
			checks: map[string]CheckFunc{"a": passing(), "db": failing("connection refused")},
			code:   http.StatusServiceUnavailable,
			body:   `{"status":"unhealthy","checks":{"db":"connection refused"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			for name, fn := range tt.checks {
				h.AddLivenessCheck(name, time.Second, fn)
			}

			w := serve(h.LiveEndpoint)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, passing())

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	w = serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
}

func TestReady_FailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, PingCheck(pingerFunc(func(context.Context) error {
		return errors.New("refused")
	})))

	rep := h.Ready(context.Background())
	assert.False(t, rep.Healthy)
	assert.False(t, rep.NotReady)
	require.Len(t, rep.Results, 1)
	assert.ErrorContains(t, rep.Results[0].Err, "refused")
}

func TestChecksRunConcurrently(t *testing.T) {
	h := New()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	blocking := func(ctx context.Context) error {
		started <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.AddLivenessCheck("a", 5*time.Second, blocking)
	h.AddLivenessCheck("b", 5*time.Second, blocking)

	done := make(chan Report)
	go func() { done <- h.Live(context.Background()) }()

	// Both checks must be running at the same time before either returns.
	<-started
	<-started
	close(release)

	rep := <-done
	assert.True(t, rep.Healthy)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, "a", rep.Results[0].Name)
	assert.Equal(t, "b", rep.Results[1].Name)
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.AddLivenessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	rep := h.Live(context.Background())
	assert.False(t, rep.Healthy)
	assert.ErrorIs(t, rep.Results[0].Err, context.DeadlineExceeded)
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
