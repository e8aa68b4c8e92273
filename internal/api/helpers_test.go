package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/sorter/internal/api"
	internaldb "github.com/eargollo/sorter/internal/db"
	"github.com/eargollo/sorter/internal/history"
	"github.com/eargollo/sorter/internal/scheduler"
	"github.com/eargollo/sorter/internal/sorter"
)

// testServer wraps an in-process sorter API.
type testServer struct {
	baseURL string
	client  *http.Client
	mgr     *sorter.Manager
	store   *history.Store
	target  string
}

// newTestServer starts the API over a fresh history database. files are
// written below the source directory before the server starts.
func newTestServer(t *testing.T, files map[string]string) *testServer {
	t.Helper()
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "dist")
	for rel, body := range files {
		p := filepath.Join(src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}

	db, err := internaldb.Open(filepath.Join(t.TempDir(), "sorter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, internaldb.RunMigrations(context.Background(), db))
	store := history.New(db)

	reg := prometheus.NewRegistry()
	mgr := sorter.NewManager(sorter.New(sorter.DefaultConfig(), sorter.NewMetrics(reg)), src, dst, store)
	t.Cleanup(mgr.Wait)

	sched := scheduler.New()
	require.NoError(t, sched.SetJob("@every 1h", func() {}))

	srv := httptest.NewServer(api.NewRouter(store, mgr, sched, reg, "test"))
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  &http.Client{Timeout: 10 * time.Second},
		mgr:     mgr,
		store:   store,
		target:  dst,
	}
}

// get performs a GET request to path and returns the response.
func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Get(ts.baseURL + path)
	require.NoError(t, err, "GET %s", path)
	return resp
}

// post performs an empty POST request to path.
func (ts *testServer) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Post(ts.baseURL+path, "application/json", nil)
	require.NoError(t, err, "POST %s", path)
	return resp
}

// delete performs a DELETE request to path.
func (ts *testServer) delete(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, ts.baseURL+path, nil)
	require.NoError(t, err)
	resp, err := ts.client.Do(req)
	require.NoError(t, err, "DELETE %s", path)
	return resp
}

// requireStatus fails the test if the response status code != want.
func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d\nbody: %s", want, resp.StatusCode, body)
	}
}

// decodeJSON decodes the response body into v, failing the test on error.
func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
