package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient()
	assert.Equal(t, 30*time.Second, client.timeout)
	assert.Equal(t, DefaultUserAgent, client.headers["User-Agent"])

	custom := NewClient(
		WithTimeout(10*time.Second),
		WithHeaders(map[string]string{"X-Custom": "value"}),
		WithRetries(3),
	)
	assert.Equal(t, 10*time.Second, custom.timeout)
	assert.Equal(t, "value", custom.headers["X-Custom"])
	assert.Equal(t, DefaultUserAgent, custom.headers["User-Agent"])
	assert.Equal(t, 3, custom.retries)
}

func TestWithHTTPClientKeepsTimeout(t *testing.T) {
	hc := &http.Client{}
	client := NewClient(WithTimeout(5*time.Second), WithHTTPClient(hc))
	assert.Same(t, hc, client.httpClient)
	assert.Equal(t, 5*time.Second, hc.Timeout)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"embedUrl": "https://app.example/embed?id=1"})
	}))
	defer server.Close()

	var out struct {
		EmbedURL string `json:"embedUrl"`
	}
	require.NoError(t, NewClient().GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "https://app.example/embed?id=1", out.EmbedURL)
}

func TestPostJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "View", in["accessLevel"])
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "abc"})
	}))
	defer server.Close()

	var out struct {
		Token string `json:"token"`
	}
	err := NewClient(WithRetries(2)).PostJSON(context.Background(), server.URL, map[string]string{"accessLevel": "View"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.Token)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewClient(WithRetries(3)).GetJSON(context.Background(), server.URL, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "forbidden")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewClient(WithRetries(5)).GetJSON(ctx, server.URL, nil)
	require.Error(t, err)
}
