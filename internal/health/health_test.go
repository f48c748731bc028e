package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerFor(t *testing.T, srv *httptest.Server) (*HTTPChecker, string) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return NewHTTPChecker(port), u.Hostname()
}

func TestCheckRunningHealthy(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker, host := checkerFor(t, srv)
	ok, err := checker.CheckRunning(context.Background(), host)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckRunningUnhealthyStatus(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	checker, host := checkerFor(t, srv)
	ok, err := checker.CheckRunning(context.Background(), host)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckRunningConnectionRefused(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	checker, host := checkerFor(t, srv)
	srv.Close()

	ok, err := checker.CheckRunning(context.Background(), host)
	require.NoError(t, err, "a down service is a negative result, not a probe error")
	assert.False(t, ok)
}
