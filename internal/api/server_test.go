package api_test

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/sorter/internal/sorter"
)

func TestStatus_Shape(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.get(t, "/api/status")
	requireStatus(t, resp, http.StatusOK)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body struct {
		Version  string `json:"version"`
		Schedule struct {
			Cron   string `json:"cron"`
			Paused bool   `json:"paused"`
		} `json:"schedule"`
		ActiveRun any `json:"active_run"`
		LastRun   any `json:"last_run"`
	}
	decodeJSON(t, resp, &body)

	assert.Equal(t, "test", body.Version)
	assert.Equal(t, "@every 1h", body.Schedule.Cron)
	assert.False(t, body.Schedule.Paused)
	assert.Nil(t, body.ActiveRun)
	assert.Nil(t, body.LastRun)
}

func TestManualRun_StartsAndIsRecorded(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"a/doc.txt": "alpha",
		"b/doc.txt": "beta",
		"pic.PNG":   "png",
	})

	resp := ts.post(t, "/api/runs")
	requireStatus(t, resp, http.StatusAccepted)
	var started struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		TriggeredBy string `json:"triggered_by"`
	}
	decodeJSON(t, resp, &started)
	require.NotEmpty(t, started.ID)
	assert.Equal(t, sorter.StatusRunning, started.Status)
	assert.Equal(t, "manual", started.TriggeredBy)

	ts.mgr.Wait()

	resp = ts.get(t, "/api/runs/"+started.ID)
	requireStatus(t, resp, http.StatusOK)
	var detail struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Copied   int64  `json:"copied"`
		Renamed  int64  `json:"renamed"`
		Failures []any  `json:"failures"`
	}
	decodeJSON(t, resp, &detail)
	assert.Equal(t, started.ID, detail.ID)
	assert.Equal(t, sorter.StatusCompleted, detail.Status)
	assert.EqualValues(t, 2, detail.Copied)
	assert.EqualValues(t, 1, detail.Renamed)
	assert.Empty(t, detail.Failures)

	_, err := os.Stat(filepath.Join(ts.target, "png", "pic.PNG"))
	assert.NoError(t, err)

	resp = ts.get(t, "/api/runs")
	requireStatus(t, resp, http.StatusOK)
	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Total int `json:"total"`
		Limit int `json:"limit"`
	}
	decodeJSON(t, resp, &list)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 50, list.Limit)
	require.Len(t, list.Items, 1)
	assert.Equal(t, started.ID, list.Items[0].ID)

	resp = ts.get(t, "/api/status")
	var status struct {
		LastRun struct {
			ID string `json:"id"`
		} `json:"last_run"`
	}
	decodeJSON(t, resp, &status)
	assert.Equal(t, started.ID, status.LastRun.ID)
}

func TestRuns_GetUnknownIs404(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.get(t, "/api/runs/does-not-exist")
	requireStatus(t, resp, http.StatusNotFound)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestRuns_CancelWhenIdleIs404(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.delete(t, "/api/runs/current")
	defer resp.Body.Close()
	requireStatus(t, resp, http.StatusNotFound)
}

func TestRuns_PaginationClamped(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.get(t, "/api/runs?limit=1000&offset=-3")
	requireStatus(t, resp, http.StatusOK)
	var list struct {
		Items  []any `json:"items"`
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
	}
	decodeJSON(t, resp, &list)
	assert.Equal(t, 50, list.Limit)
	assert.Equal(t, 0, list.Offset)
	assert.NotNil(t, list.Items)
}

func TestMetrics_Exposed(t *testing.T) {
	ts := newTestServer(t, map[string]string{"x.txt": "x"})

	resp := ts.post(t, "/api/runs")
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()
	ts.mgr.Wait()

	resp = ts.get(t, "/metrics")
	defer resp.Body.Close()
	requireStatus(t, resp, http.StatusOK)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "sorter_files_total"), "metrics body:\n%s", b)
}
