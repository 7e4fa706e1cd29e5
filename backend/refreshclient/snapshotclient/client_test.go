package snapshotclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxury-yacht/app/backend/refresh"
)

func staticBaseURL(url string) BaseURLFunc {
	return func(ctx context.Context) (string, error) {
		return url, nil
	}
}

func TestFetchSnapshotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/snapshots/pods", r.URL.Path)
		w.Header().Set("ETag", "abc123")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(Snapshot{Domain: "pods", Version: 3, Checksum: "abc123"})
	}))
	defer srv.Close()

	c := New(staticBaseURL(srv.URL), srv.Client(), nil, nil)
	snap, err := c.FetchSnapshot(context.Background(), "pods", FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, "pods", snap.Domain)
	require.Equal(t, "abc123", snap.ETag)
	require.False(t, snap.NotModified)
}

func TestFetchSnapshotNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "etag-1", r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c := New(staticBaseURL(srv.URL), srv.Client(), nil, nil)
	snap, err := c.FetchSnapshot(context.Background(), "pods", FetchOptions{IfNoneMatch: "etag-1"})
	require.NoError(t, err)
	require.True(t, snap.NotModified)
}

func TestFetchSnapshotPermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind":   "Status",
			"reason": "Forbidden",
			"code":   403,
			"details": map[string]string{
				"domain":   "nodes",
				"resource": "core/nodes",
			},
		})
	}))
	defer srv.Close()

	c := New(staticBaseURL(srv.URL), srv.Client(), nil, nil)
	_, err := c.FetchSnapshot(context.Background(), "nodes", FetchOptions{})
	require.Error(t, err)
	require.True(t, refresh.IsPermissionDenied(err))
}

func TestFetchSnapshotRetriesTransientErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			panic(http.ErrAbortHandler)
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(Snapshot{Domain: "pods"})
	}))
	defer srv.Close()

	c := New(staticBaseURL(srv.URL), srv.Client(), nil, nil)
	snap, err := c.FetchSnapshot(context.Background(), "pods", FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, "pods", snap.Domain)
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestEnsureRefreshBaseURLRetriesUntilReady(t *testing.T) {
	var attempts int32
	resolver := func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return "", errors.New("refresh subsystem not initialised")
		}
		return "http://example.invalid", nil
	}
	c := New(resolver, nil, nil, nil)
	url, err := c.EnsureRefreshBaseURL(context.Background())
	require.NoError(t, err)
	require.Equal(t, "http://example.invalid", url)
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestEnsureRefreshBaseURLAbortsOnOtherError(t *testing.T) {
	resolver := func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	}
	c := New(resolver, nil, nil, nil)
	_, err := c.EnsureRefreshBaseURL(context.Background())
	require.Error(t, err)
	require.Equal(t, "boom", err.Error())
}

func TestInvalidateRefreshBaseURLForcesReresolution(t *testing.T) {
	var attempts int32
	resolver := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "http://example.invalid", nil
	}
	c := New(resolver, nil, nil, nil)
	_, _ = c.EnsureRefreshBaseURL(context.Background())
	_, _ = c.EnsureRefreshBaseURL(context.Background())
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))

	c.InvalidateRefreshBaseURL()
	_, _ = c.EnsureRefreshBaseURL(context.Background())
	require.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}
