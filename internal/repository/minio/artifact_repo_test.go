package minio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	minioCfg := &cfg.MinIOCfg{BucketName: "artifacts"}

	assert.Equal(t, "s3://artifacts/data/kmeans150.json", NewArtifactRepo(nil, minioCfg, "data").Describe("kmeans150.json"))
	assert.Equal(t, "s3://artifacts/kmeans150.json", NewArtifactRepo(nil, minioCfg, ".").Describe("kmeans150.json"))
	assert.Equal(t, "s3://artifacts/amazon_categories.csv", NewArtifactRepo(nil, minioCfg, "").Describe("amazon_categories.csv"))
}

func TestOpenMissingObject(t *testing.T) {
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	mc, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:        credentials.NewStaticV4("key", "secret", ""),
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})
	require.NoError(t, err)

	repo := NewArtifactRepo(mc, &cfg.MinIOCfg{BucketName: "artifacts"}, "data")

	_, err = repo.Open(context.Background(), "kmeans6500.json")
	assert.ErrorIs(t, err, e.ErrArtifactNotFound)
	assert.Contains(t, requested, "HEAD /artifacts/data/kmeans6500.json")
}
