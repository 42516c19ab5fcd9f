package httpshell

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	c := NewClient(Settings{Name: "test", RateLimitPerSecond: 100, FailureThreshold: 5, RecoveryTimeout: time.Second})
	var out struct {
		Value int `json:"value"`
	}
	err := c.GetJSON(context.Background(), srv.URL, &out, true)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
}

func TestGetJSONForbiddenFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Settings{Name: "test", RateLimitPerSecond: 100, FailureThreshold: 5, RecoveryTimeout: time.Second})
	err := c.GetJSON(context.Background(), srv.URL, nil, true)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRPCLevelErrorDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"code": -32000, "message": "boom"}}`))
	}))
	defer srv.Close()

	c := NewClient(Settings{Name: "test", RateLimitPerSecond: 100, FailureThreshold: 5, RecoveryTimeout: time.Second})
	err := c.GetJSON(context.Background(), srv.URL, nil, true)
	require.ErrorIs(t, err, ErrRPCError)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Settings{Name: "breaker-test", RateLimitPerSecond: 1000, FailureThreshold: 2, RecoveryTimeout: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = c.GetJSON(ctx, srv.URL, nil, true)
	status := c.Status()
	assert.NotEqual(t, "", status.State)
}

func TestParseRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 5.0, parseRetryAfter("5"))
	assert.Equal(t, 0.0, parseRetryAfter(""))
}
