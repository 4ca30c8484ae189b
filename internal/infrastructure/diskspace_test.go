package infrastructure

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestFreeSpace_MissingPath(t *testing.T) {
	_, err := FreeSpace(filepath.Join(t.TempDir(), "does", "not", "exist"))
	assert.Error(t, err)
}
