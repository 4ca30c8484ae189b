package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(readTimeout time.Duration, chunkSize int) *HTTPFetcher {
	cfg := domain.DefaultConfig().HTTP
	cfg.ReadTimeout = readTimeout
	return NewHTTPFetcher(NewFileClient(&cfg), NewFileNamer(), &cfg, chunkSize, zap.NewNop())
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHTTPFetcher_Success(t *testing.T) {
	payload := strings.Repeat("0123456789", 100)
	agents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	dir := t.TempDir()
	res, err := newTestFetcher(time.Second, 64).Fetch(context.Background(),
		domain.DiscoveredFile{URL: srv.URL + "/files/data.txt", Extension: ".txt"}, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data.txt"), res.Path)
	assert.Equal(t, int64(len(payload)), res.Bytes)
	assert.Equal(t, domain.DefaultUserAgent, <-agents)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestHTTPFetcher_ContentDispositionAndRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/get", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/storage/final-name.zip", http.StatusFound)
	})
	mux.HandleFunc("/storage/final-name.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("zip"))
	})
	mux.HandleFunc("/attach", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Annual Report.pdf"`)
		w.Write([]byte("pdf"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	f := newTestFetcher(time.Second, 8192)

	res, err := f.Fetch(context.Background(), domain.DiscoveredFile{URL: srv.URL + "/get?id=1", Extension: ""}, dir)
	require.NoError(t, err)
	assert.Equal(t, "final-name.zip", filepath.Base(res.Path))

	res, err = f.Fetch(context.Background(), domain.DiscoveredFile{URL: srv.URL + "/attach", Extension: ""}, dir)
	require.NoError(t, err)
	assert.Equal(t, "Annual Report.pdf", filepath.Base(res.Path))
}

func TestHTTPFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := newTestFetcher(time.Second, 8192).Fetch(context.Background(),
		domain.DiscoveredFile{URL: srv.URL + "/missing.png", Extension: ".png"}, dir)

	var statusErr *domain.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Empty(t, dirEntries(t, dir))
}

func TestHTTPFetcher_CancelMidStreamRemovesPartialFile(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1024)))
		w.(http.Flusher).Flush()
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	dir := t.TempDir()
	_, err := newTestFetcher(10*time.Second, 256).Fetch(ctx,
		domain.DiscoveredFile{URL: srv.URL + "/big.bin", Extension: ".bin"}, dir)

	assert.True(t, domain.IsCancelled(err), "%v", err)
	assert.Empty(t, dirEntries(t, dir))
}

func TestHTTPFetcher_IdleTimeoutFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := newTestFetcher(100*time.Millisecond, 8192).Fetch(context.Background(),
		domain.DiscoveredFile{URL: srv.URL + "/slow.bin", Extension: ".bin"}, dir)

	require.Error(t, err)
	assert.False(t, domain.IsCancelled(err))
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded))
	assert.Empty(t, dirEntries(t, dir))
}

func TestHTTPFetcher_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(time.Second, 8192).Fetch(ctx,
		domain.DiscoveredFile{URL: "http://127.0.0.1:1/a.png"}, t.TempDir())
	assert.True(t, domain.IsCancelled(err))
}
