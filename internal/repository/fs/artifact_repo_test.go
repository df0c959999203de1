package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactRepoOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kmeans150.json"), []byte("{}"), 0o600))

	repo := NewArtifactRepo(dir)

	rc, err := repo.Open(context.Background(), "kmeans150.json")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestArtifactRepoOpenMissing(t *testing.T) {
	repo := NewArtifactRepo(t.TempDir())

	_, err := repo.Open(context.Background(), "kmeans6500.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrArtifactNotFound)
}

func TestArtifactRepoOpenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewArtifactRepo(t.TempDir()).Open(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
}
