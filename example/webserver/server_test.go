package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gleipnir-Technology/bounce/video"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*server, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := newServer(ctx, video.NewCatalog(sampleVideos()...), zerolog.New(&out), time.Second, clockwork.NewFakeClock())
	return s, &out
}

func search(t *testing.T, h http.Handler, q string) video.SearchResult {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q="+q, nil)
	req.Header.Set("X-Bounce-User", "user-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result video.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestSearchEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	result := search(t, h, "concurrency")
	assert.Equal(t, "concurrency", result.Query)
	assert.Equal(t, 3, result.Total)

	result = search(t, h, "")
	assert.Equal(t, len(sampleVideos()), result.Total)
}

func TestSearchBurstLogsOnce(t *testing.T) {
	s, out := newTestServer(t)
	h := s.routes()

	for _, q := range []string{"d", "de", "deb", "debounce"} {
		search(t, h, q)
	}
	assert.True(t, s.summary.Pending())
	assert.Empty(t, out.String())

	require.True(t, s.summary.Flush())

	var line map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, "search burst", line["message"])
	assert.EqualValues(t, 4, line["searches"])
	assert.Equal(t, "debounce", line["last_query"])
	assert.Equal(t, "user-1", line["user"])

	// the next burst starts counting from zero
	out.Reset()
	search(t, h, "go")
	require.True(t, s.summary.Flush())
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.EqualValues(t, 1, line["searches"])
}

func TestSearchDuringFireCountedOnce(t *testing.T) {
	s, out := newTestServer(t)
	h := s.routes()

	search(t, h, "a")
	search(t, h, "ab")
	// the timer fires with two searches and a third lands before the summary
	// takes the lock
	s.mu.Lock()
	fired := s.pending
	s.mu.Unlock()
	search(t, h, "abc")
	s.logSummary(fired)
	require.True(t, s.summary.Flush())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &line))
	assert.EqualValues(t, 3, line["searches"])
	assert.Equal(t, "abc", line["last_query"])

	out.Reset()
	search(t, h, "go")
	require.True(t, s.summary.Flush())
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.EqualValues(t, 1, line["searches"])
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/search")
}
