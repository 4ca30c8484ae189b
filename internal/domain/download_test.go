package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSession(t *testing.T) {
	items := []DiscoveredFile{{URL: "https://example.com/a.png", Extension: ".png"}}

	session := NewSession("/tmp/out", items, 0)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "/tmp/out", session.DestinationDir)
	assert.Equal(t, 1, session.Workers)
	assert.Len(t, session.Items, 1)
	assert.False(t, session.CreatedAt.IsZero())
}

func TestSessionResult_Add(t *testing.T) {
	result := &SessionResult{Total: 3}

	result.Add(&Outcome{URL: "a", Status: OutcomeSuccess, Bytes: 10})
	result.Add(&Outcome{URL: "b", Status: OutcomeFailed, Error: "HTTP 404"})
	result.Add(&Outcome{URL: "c", Status: OutcomeCancelled})

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.Cancelled)
	assert.Equal(t, int64(10), result.Bytes)
	assert.Len(t, result.Outcomes, 3)
}
