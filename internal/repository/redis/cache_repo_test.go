package redis

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/pkg/clients"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingKey(t *testing.T) {
	repo := NewEmbeddingCacheRepo(nil, "all-MiniLM-L6-v2", 384, &cfg.RedisCfg{})

	key := repo.embeddingKey("hello")
	assert.Equal(t, "embedding:all-MiniLM-L6-v2:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", key)
	assert.NotEqual(t, key, repo.embeddingKey("hello "))

	other := NewEmbeddingCacheRepo(nil, "other-model", 384, &cfg.RedisCfg{})
	assert.NotEqual(t, key, other.embeddingKey("hello"))
}

func TestUnmarshalEmbedding(t *testing.T) {
	vec, err := unmarshalEmbedding([]byte(`[0.5,-1,2e-3]`), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1, 0.002}, vec)

	vec, err = unmarshalEmbedding([]byte(`[0.5,-1]`), 0)
	require.NoError(t, err)
	assert.Len(t, vec, 2)

	_, err = unmarshalEmbedding([]byte(`[]`), 0)
	assert.ErrorIs(t, err, e.ErrEmbeddingFailed)

	_, err = unmarshalEmbedding([]byte(`[0.5,-1]`), 3)
	assert.ErrorIs(t, err, e.ErrDimensionMismatch)

	_, err = unmarshalEmbedding([]byte(`{"a":1}`), 0)
	assert.Error(t, err)
}

func TestEmbeddingCacheUnreachableRedis(t *testing.T) {
	redisCfg := &cfg.RedisCfg{
		Addr:         "127.0.0.1:1",
		MaxRetries:   -1,
		DialTimeout:  100 * time.Millisecond,
		Timeout:      100 * time.Millisecond,
		EmbeddingTTL: time.Hour,
	}
	client := clients.NewRedisClient(redisCfg)
	defer client.Close()

	repo := NewEmbeddingCacheRepo(client, "m", 0, redisCfg)

	_, hit, err := repo.GetEmbedding(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, hit)

	assert.Error(t, repo.SetEmbedding(context.Background(), "text", []float64{1}))
}

func TestNopEmbeddingCache(t *testing.T) {
	var c NopEmbeddingCache

	vec, hit, err := c.GetEmbedding(context.Background(), "text")
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, vec)
	assert.NoError(t, c.SetEmbedding(context.Background(), "text", []float64{1}))
}
