package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job := NewJob(JobKindDiscovery, "https://example.com")

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobKindDiscovery, job.Kind)
	assert.Equal(t, JobQueued, job.Status)
	assert.Equal(t, "https://example.com", job.PageURL)
	assert.False(t, job.IsTerminal())
}

func TestJob_Transitions(t *testing.T) {
	job := NewJob(JobKindDownload, "")

	job.MarkRunning()
	assert.Equal(t, JobRunning, job.Status)
	assert.NotNil(t, job.StartedAt)
	assert.False(t, job.IsTerminal())

	job.MarkFailed(errors.New("boom"))
	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, "boom", job.ErrorMessage)
	assert.NotNil(t, job.CompletedAt)
	assert.True(t, job.IsTerminal())

	other := NewJob(JobKindDownload, "")
	other.MarkCancelled()
	assert.True(t, other.IsTerminal())

	done := NewJob(JobKindDownload, "")
	done.MarkCompleted()
	assert.Equal(t, JobCompleted, done.Status)
}

func TestJob_ApplyProgress(t *testing.T) {
	job := NewJob(JobKindDownload, "")

	job.ApplyProgress(ProgressEvent{Processed: 1, Total: 3, Outcome: &Outcome{Status: OutcomeSuccess}})
	job.ApplyProgress(ProgressEvent{Processed: 2, Total: 3, Outcome: &Outcome{Status: OutcomeFailed}})

	assert.Equal(t, 2, job.Processed)
	assert.Equal(t, 3, job.Total)
	assert.Equal(t, 1, job.Succeeded)
	assert.Equal(t, 1, job.Failed)
}

func TestJob_Results(t *testing.T) {
	disc := NewJob(JobKindDiscovery, "https://example.com")
	require.NoError(t, disc.SetResult(&DiscoveryResult{
		Category: "Images",
		Files:    []DiscoveredFile{{URL: "https://example.com/a.png", Extension: ".png"}},
	}))

	res, err := disc.DiscoveryResult()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Files, 1)

	sess, err := disc.SessionResult()
	assert.NoError(t, err)
	assert.Nil(t, sess)

	dl := NewJob(JobKindDownload, "")
	require.NoError(t, dl.SetResult(&SessionResult{Attempted: 2, Succeeded: 1}))
	sres, err := dl.SessionResult()
	require.NoError(t, err)
	assert.Equal(t, 2, sres.Attempted)

	dl.Result = "{not json"
	_, err = dl.SessionResult()
	assert.Error(t, err)
}

func TestValidateJobStatus(t *testing.T) {
	assert.True(t, ValidateJobStatus(JobRunning))
	assert.False(t, ValidateJobStatus("paused"))
}
