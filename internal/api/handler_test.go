package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/litecron/litecron/internal/config"
	"github.com/litecron/litecron/internal/crontab"
	"github.com/litecron/litecron/internal/guard"
	"github.com/litecron/litecron/internal/logfile"
	"github.com/litecron/litecron/internal/runner"
	"github.com/litecron/litecron/internal/stream"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerConfig = `
logs:
  dir: %LOGS%
tasks:
  - name: A
    schedule: "*/5 * * * *"
    command: echo ok
    description: smoke test
    enabled: true
  - name: off
    schedule: "0 8 * * *"
    command: echo off
    enabled: false
`

type fakeInstaller struct {
	mu        sync.Mutex
	installed []string
}

func (f *fakeInstaller) Install(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed = append(f.installed, text)
	return nil
}

func (f *fakeInstaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.installed)
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeInstaller, *logfile.Book) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dir := t.TempDir()
	logsDir := filepath.Join(dir, "logs")
	configPath := filepath.Join(dir, "config.yml")
	content := strings.ReplaceAll(handlerConfig, "%LOGS%", logsDir)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	store := config.NewStore(configPath, logger)
	book, err := logfile.NewBook(logsDir)
	require.NoError(t, err)
	g, err := guard.New(filepath.Join(dir, "locks"))
	require.NoError(t, err)

	publisher := stream.New(store, runner.New(g, book, nil, logger), logger)
	compiler := crontab.NewCompiler(logger, "/usr/local/bin/litecron-runner", configPath)
	installer := &fakeInstaller{}

	handler := NewHandler(store, compiler, installer, publisher, book, logger)
	server := httptest.NewServer(NewRouter(handler, logger))
	t.Cleanup(server.Close)
	return server, installer, book
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestHealthCheck(t *testing.T) {
	server, _, _ := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, server.URL+"/api/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestListTasks(t *testing.T) {
	server, _, _ := newTestServer(t)

	var body TasksResponse
	getJSON(t, server.URL+"/api/tasks", &body)

	assert.True(t, body.ConfigExists)
	require.Len(t, body.Tasks, 2)

	first := body.Tasks[0]
	assert.Equal(t, "A", first.Name)
	assert.True(t, first.Enabled)
	assert.Equal(t, "*/5 * * * *", first.Schedule)
	assert.Equal(t, "every 5 minutes", first.ScheduleDesc)
	assert.Equal(t, "smoke test", first.Description)
	assert.NotEmpty(t, first.NextRun)

	// Disabled tasks carry no next run
	assert.Empty(t, body.Tasks[1].NextRun)
}

func TestRunTaskStreamsFrames(t *testing.T) {
	server, _, book := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/tasks/A/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var statuses []string
	var last map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var frame map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame))
		statuses = append(statuses, frame["status"].(string))
		last = frame
	}

	require.Equal(t, []string{"started", "running", "completed"}, statuses)
	assert.Equal(t, true, last["success"])
	assert.Equal(t, float64(0), last["exit_code"])

	// Output reached the day's log file as it streamed
	content := book.TailToday(10)
	assert.Contains(t, content, "[JOB] A | ok")
}

func TestRunUnknownTask(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/tasks/nope/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &frame))
	assert.Equal(t, "error", frame["status"])
}

func TestToggleTaskRecompilesCrontab(t *testing.T) {
	server, installer, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/tasks/off/toggle", "application/json",
		strings.NewReader(`{"enable": true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])

	require.Equal(t, 1, installer.count())
	assert.Contains(t, installer.installed[0], "'off'")
	assert.Contains(t, installer.installed[0], "'A'")
}

func TestLogEndpoints(t *testing.T) {
	server, _, book := newTestServer(t)
	require.NoError(t, book.Append("line one"))
	require.NoError(t, book.Append("line two"))

	var listing map[string][]LogView
	getJSON(t, server.URL+"/api/logs", &listing)
	require.Len(t, listing["logs"], 1)
	name := listing["logs"][0].Name

	var content map[string]any
	getJSON(t, server.URL+"/api/logs/"+name+"?limit=1", &content)
	assert.Contains(t, content["content"], "line two")
	assert.NotContains(t, content["content"], "line one")

	resp, err := http.Get(server.URL + "/api/logs/19700101.log")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var missing map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&missing))
	assert.NotEmpty(t, missing["error"])
}

func TestCleanSweepsOldLogs(t *testing.T) {
	server, _, book := newTestServer(t)

	old := filepath.Join(book.Dir(), "20200101.log")
	require.NoError(t, os.WriteFile(old, []byte("stale\n"), 0o644))
	when := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, when, when))

	resp, err := http.Post(server.URL+"/api/clean", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["cleaned"])
	assert.NoFileExists(t, old)
}

func TestStatus(t *testing.T) {
	server, _, _ := newTestServer(t)

	var body map[string]any
	getJSON(t, server.URL+"/api/status", &body)
	assert.Equal(t, true, body["config_exists"])

	tasks := body["tasks"].(map[string]any)
	assert.Equal(t, float64(2), tasks["total"])
	assert.Equal(t, float64(1), tasks["enabled"])
	assert.Equal(t, float64(1), tasks["disabled"])
}
