package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/linkgrab/linkgrab/internal/infrastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type jobFixture struct {
	manager    *JobManager
	discoverer *fakeDiscoverer
	fetcher    *fakeFetcher
	baseDir    string
}

func newJobFixture(t *testing.T, urls ...string) *jobFixture {
	t.Helper()

	repo, err := infrastructure.NewSQLiteJobRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := domain.DefaultConfig()
	cfg.Jobs.CheckInterval = 20 * time.Millisecond
	cfg.Download.BaseDir = t.TempDir()

	discoverer := newFakeDiscoverer(urls...)
	fetcher := &fakeFetcher{}
	discovery := newTestDiscoveryService(discoverer)
	engine := NewDownloadEngine(fetcher, &cfg.Download, nil, nil, zap.NewNop())

	manager := NewJobManager(repo, discovery, engine, NewEventHub(256), &cfg.Jobs, &cfg.Download, nil, zap.NewNop())
	return &jobFixture{manager: manager, discoverer: discoverer, fetcher: fetcher, baseDir: cfg.Download.BaseDir}
}

func (f *jobFixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.Start(context.Background()))
	t.Cleanup(func() {
		if f.manager.IsRunning() {
			f.manager.Stop()
		}
	})
}

func waitForStatus(t *testing.T, jm *JobManager, id string, status domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = jm.GetJob(id)
		return err == nil && job.Status == status
	}, 3*time.Second, 10*time.Millisecond, "job never reached %s", status)
	return job
}

func TestJobManager_SubmitValidation(t *testing.T) {
	f := newJobFixture(t)

	_, err := f.manager.SubmitDiscovery("ftp://example.com", "Images")
	assert.ErrorIs(t, err, domain.ErrInvalidURL)

	_, err = f.manager.SubmitDiscovery("https://example.com", "Nope")
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)

	_, err = f.manager.SubmitDownload(DownloadRequest{})
	assert.Error(t, err)

	_, err = f.manager.SubmitDownload(DownloadRequest{Files: []string{"https://example.com/a.png", "not a url"}})
	assert.ErrorIs(t, err, domain.ErrInvalidURL)

	_, err = f.manager.SubmitDownload(DownloadRequest{Files: []string{"https://example.com/a.png"}, DestinationDir: "/etc"})
	assert.ErrorIs(t, err, domain.ErrInvalidDestination)
}

func TestResolveDestination(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		dest    string
		want    string
		wantErr bool
	}{
		{"empty", "", base, false},
		{"relative", "photos", filepath.Join(base, "photos"), false},
		{"nested relative", "a/b/../c", filepath.Join(base, "a", "c"), false},
		{"absolute inside", filepath.Join(base, "x"), filepath.Join(base, "x"), false},
		{"base itself", base, base, false},
		{"dotdot name inside", "..hidden", filepath.Join(base, "..hidden"), false},
		{"parent", "..", "", true},
		{"escape", "../sibling", "", true},
		{"absolute outside", filepath.Dir(base), "", true},
		{"sibling prefix", base + "-other", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDestination(base, tt.dest)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidDestination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobManager_DiscoveryJob(t *testing.T) {
	f := newJobFixture(t, "https://example.com/a.png", "https://example.com/b.zip")
	f.start(t)

	job, err := f.manager.SubmitDiscovery("https://example.com", "")
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, job.Status)
	assert.Equal(t, "Images", job.Category)

	done := waitForStatus(t, f.manager, job.ID, domain.JobCompleted)
	assert.Equal(t, 2, done.Total)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	result, err := done.DiscoveryResult()
	require.NoError(t, err)
	require.Len(t, result.Files, 2)
	assert.True(t, result.Files[0].Selected)
	assert.False(t, result.Files[1].Selected)
}

func TestJobManager_DiscoveryJobFailure(t *testing.T) {
	f := newJobFixture(t)
	f.discoverer.err = fmt.Errorf("dial tcp: no such host")
	f.start(t)

	job, err := f.manager.SubmitDiscovery("https://nowhere.invalid", "Images")
	require.NoError(t, err)

	failed := waitForStatus(t, f.manager, job.ID, domain.JobFailed)
	assert.Contains(t, failed.ErrorMessage, "no such host")
}

func TestJobManager_DownloadFiles(t *testing.T) {
	f := newJobFixture(t)
	f.fetcher.handle = func(ctx context.Context, file domain.DiscoveredFile) (bool, error) {
		if strings.HasSuffix(file.URL, "missing.png") {
			return true, &domain.HTTPStatusError{URL: file.URL, StatusCode: 404}
		}
		return false, nil
	}
	f.start(t)

	dest := filepath.Join(f.baseDir, "out")
	job, err := f.manager.SubmitDownload(DownloadRequest{
		Files:          []string{"https://example.com/a.png", "https://example.com/missing.png", "https://example.com/c.pdf"},
		DestinationDir: dest,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, job.Total)
	assert.Equal(t, 1, job.Workers)

	done := waitForStatus(t, f.manager, job.ID, domain.JobCompleted)
	assert.Equal(t, 3, done.Processed)
	assert.Equal(t, 2, done.Succeeded)
	assert.Equal(t, 1, done.Failed)

	result, err := done.SessionResult()
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, domain.OutcomeFailed, result.Outcomes[1].Status)

	_, err = os.Stat(filepath.Join(dest, "c.pdf"))
	assert.NoError(t, err)
}

func TestJobManager_DownloadFromPage(t *testing.T) {
	f := newJobFixture(t,
		"https://example.com/a.png",
		"https://example.com/b.jpg",
		"https://example.com/doc.pdf",
	)
	f.start(t)

	job, err := f.manager.SubmitDownload(DownloadRequest{
		PageURL:    "https://example.com",
		Category:   "Images",
		Extensions: []string{"jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, f.baseDir, job.DestinationDir)

	done := waitForStatus(t, f.manager, job.ID, domain.JobCompleted)
	assert.Equal(t, 1, done.Total)
	assert.Equal(t, []string{"https://example.com/b.jpg"}, f.fetcher.Calls())
}

func TestJobManager_CancelQueuedJob(t *testing.T) {
	f := newJobFixture(t, "https://example.com/a.png")

	job, err := f.manager.SubmitDiscovery("https://example.com", "Images")
	require.NoError(t, err)

	require.NoError(t, f.manager.CancelJob(job.ID))

	cancelled, err := f.manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, cancelled.Status)

	assert.ErrorIs(t, f.manager.CancelJob(job.ID), domain.ErrJobTerminal)
	assert.ErrorIs(t, f.manager.CancelJob("missing"), domain.ErrJobNotFound)

	f.start(t)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, f.discoverer.Calls())
}

func TestJobManager_CancelRunningDownload(t *testing.T) {
	f := newJobFixture(t)
	started := make(chan struct{}, 1)
	f.fetcher.handle = func(ctx context.Context, file domain.DiscoveredFile) (bool, error) {
		started <- struct{}{}
		<-ctx.Done()
		return true, fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
	}
	f.start(t)

	job, err := f.manager.SubmitDownload(DownloadRequest{
		Files: []string{"https://example.com/a.bin", "https://example.com/b.bin"},
	})
	require.NoError(t, err)

	<-started
	require.NoError(t, f.manager.CancelJob(job.ID))

	cancelled := waitForStatus(t, f.manager, job.ID, domain.JobCancelled)
	result, err := cancelled.SessionResult()
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Len(t, f.fetcher.Calls(), 1)
}

func TestJobManager_DeleteJob(t *testing.T) {
	f := newJobFixture(t)

	job, err := f.manager.SubmitDiscovery("https://example.com", "Images")
	require.NoError(t, err)

	assert.ErrorIs(t, f.manager.DeleteJob(job.ID), domain.ErrJobActive)

	require.NoError(t, f.manager.CancelJob(job.ID))
	require.NoError(t, f.manager.DeleteJob(job.ID))

	_, err = f.manager.GetJob(job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobManager_ListAndStats(t *testing.T) {
	f := newJobFixture(t)

	_, err := f.manager.SubmitDiscovery("https://example.com/1", "Images")
	require.NoError(t, err)
	second, err := f.manager.SubmitDownload(DownloadRequest{Files: []string{"https://example.com/a.png"}})
	require.NoError(t, err)
	require.NoError(t, f.manager.CancelJob(second.ID))

	all, err := f.manager.ListJobs(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	downloads, err := f.manager.ListJobs(map[string]interface{}{"kind": domain.JobKindDownload})
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, second.ID, downloads[0].ID)

	stats, err := f.manager.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Queued)
	assert.Equal(t, int64(1), stats.Cancelled)
}

func TestJobManager_SubscribeReceivesLifecycle(t *testing.T) {
	f := newJobFixture(t, "https://example.com/a.png")

	job, err := f.manager.SubmitDiscovery("https://example.com", "Images")
	require.NoError(t, err)

	snapshot, events, unsubscribe, err := f.manager.Subscribe(job.ID)
	require.NoError(t, err)
	defer unsubscribe()
	assert.Equal(t, domain.JobQueued, snapshot.Status)

	f.start(t)

	var received []domain.JobEvent
	timeout := time.After(3 * time.Second)
	for open := true; open; {
		select {
		case ev, ok := <-events:
			if !ok {
				open = false
				break
			}
			received = append(received, ev)
		case <-timeout:
			t.Fatal("event stream was not closed")
		}
	}

	require.NotEmpty(t, received)
	first, last := received[0], received[len(received)-1]
	assert.Equal(t, domain.JobEventStatus, first.Type)
	assert.Equal(t, domain.JobRunning, first.Status)
	assert.Equal(t, domain.JobEventStatus, last.Type)
	assert.Equal(t, domain.JobCompleted, last.Status)
	require.NotNil(t, last.Job)
	assert.Equal(t, job.ID, last.Job.ID)

	var found int
	for _, ev := range received {
		if ev.Type == domain.JobEventDiscovery && ev.File != nil {
			found++
		}
	}
	assert.Equal(t, 1, found)
}

func TestJobManager_SubscribeFinishedJob(t *testing.T) {
	f := newJobFixture(t)

	job, err := f.manager.SubmitDiscovery("https://example.com", "Images")
	require.NoError(t, err)
	require.NoError(t, f.manager.CancelJob(job.ID))

	snapshot, events, unsubscribe, err := f.manager.Subscribe(job.ID)
	require.NoError(t, err)
	defer unsubscribe()

	assert.Equal(t, domain.JobCancelled, snapshot.Status)
	_, ok := <-events
	assert.False(t, ok)

	_, _, _, err = f.manager.Subscribe("missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobManager_StartStop(t *testing.T) {
	f := newJobFixture(t)

	require.NoError(t, f.manager.Start(context.Background()))
	assert.True(t, f.manager.IsRunning())
	assert.Error(t, f.manager.Start(context.Background()))

	require.NoError(t, f.manager.Stop())
	assert.False(t, f.manager.IsRunning())
	assert.Error(t, f.manager.Stop())
}
