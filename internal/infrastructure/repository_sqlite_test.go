package infrastructure

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (*SQLiteJobRepository, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "repo-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewSQLiteJobRepository(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func TestSQLiteJobRepository_CreateAndFind(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	job := domain.NewJob(domain.JobKindDiscovery, "https://example.com")
	job.Category = "Images"
	require.NoError(t, repo.Create(job))

	found, err := repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)
	assert.Equal(t, domain.JobQueued, found.Status)
	assert.Equal(t, "Images", found.Category)
}

func TestSQLiteJobRepository_FindByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	_, err := repo.FindByID("missing")
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
}

func TestSQLiteJobRepository_UpdateAndResult(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	job := domain.NewJob(domain.JobKindDownload, "")
	require.NoError(t, repo.Create(job))

	job.MarkRunning()
	job.ApplyProgress(domain.ProgressEvent{Processed: 1, Total: 2, Outcome: &domain.Outcome{Status: domain.OutcomeSuccess}})
	require.NoError(t, job.SetResult(&domain.SessionResult{Attempted: 1, Succeeded: 1}))
	require.NoError(t, repo.Update(job))

	found, err := repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, found.Status)
	assert.Equal(t, 1, found.Succeeded)

	res, err := found.SessionResult()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
}

func TestSQLiteJobRepository_FindAllAndStats(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	running := domain.NewJob(domain.JobKindDownload, "")
	running.MarkRunning()
	done := domain.NewJob(domain.JobKindDiscovery, "https://example.com")
	done.MarkCompleted()
	queued := domain.NewJob(domain.JobKindDiscovery, "https://example.org")

	for _, j := range []*domain.Job{running, done, queued} {
		require.NoError(t, repo.Create(j))
	}

	all, err := repo.FindAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	discoveries, err := repo.FindAll(map[string]interface{}{"kind": domain.JobKindDiscovery})
	require.NoError(t, err)
	assert.Len(t, discoveries, 2)

	_, err = repo.FindAll(map[string]interface{}{"1=1; --": 1})
	assert.Error(t, err)

	active, err := repo.FindActive()
	require.NoError(t, err)
	assert.Len(t, active, 2)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Running)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Queued)
}

func TestSQLiteJobRepository_DeleteAndPurge(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	a := domain.NewJob(domain.JobKindDiscovery, "https://a.test")
	b := domain.NewJob(domain.JobKindDiscovery, "https://b.test")
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	require.NoError(t, repo.Delete(a.ID))
	assert.ErrorIs(t, repo.Delete(a.ID), domain.ErrJobNotFound)

	require.NoError(t, repo.Purge())
	all, err := repo.FindAll(nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteJobRepository_InMemory(t *testing.T) {
	repo, err := NewSQLiteJobRepository(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	job := domain.NewJob(domain.JobKindDiscovery, "https://example.com")
	require.NoError(t, repo.Create(job))

	found, err := repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)
}
