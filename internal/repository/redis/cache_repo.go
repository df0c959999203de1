package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/clients"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// EmbeddingCacheRepo кэширует эмбеддинги текстов в Redis.
// Ключ включает имя модели, чтобы смена модели не отдавала векторы старой.
type EmbeddingCacheRepo struct {
	client    *clients.RedisClient
	modelName string
	dimension int
	cfg       *cfg.RedisCfg
}

func NewEmbeddingCacheRepo(client *clients.RedisClient, modelName string, dimension int, cfg *cfg.RedisCfg) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{
		client:    client,
		modelName: modelName,
		dimension: dimension,
		cfg:       cfg,
	}
}

// GetEmbedding возвращает закэшированный вектор. При промахе возвращает (nil, false, nil).
// Запись, не прошедшая проверку размерности и конечности значений, возвращается ошибкой.
func (c *EmbeddingCacheRepo) GetEmbedding(ctx context.Context, text string) ([]float64, bool, error) {
	data, err := c.client.Client.Get(ctx, c.embeddingKey(text)).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	vec, err := unmarshalEmbedding(data, c.dimension)
	if err != nil {
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	return vec, true, nil
}

// SetEmbedding сохраняет вектор с TTL из конфигурации.
func (c *EmbeddingCacheRepo) SetEmbedding(ctx context.Context, text string, vec []float64) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, c.embeddingKey(text), data, c.cfg.EmbeddingTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// embeddingKey возвращает ключ вида embedding:<model>:<sha256(text)>
func (c *EmbeddingCacheRepo) embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", c.modelName, hex.EncodeToString(sum[:]))
}

func unmarshalEmbedding(data []byte, dimension int) ([]float64, error) {
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmbedding(vec, dimension); err != nil {
		return nil, fmt.Errorf("cached embedding: %w", err)
	}

	return vec, nil
}

// NopEmbeddingCache используется, когда Redis выключен.
type NopEmbeddingCache struct{}

func (NopEmbeddingCache) GetEmbedding(context.Context, string) ([]float64, bool, error) {
	return nil, false, nil
}

func (NopEmbeddingCache) SetEmbedding(context.Context, string, []float64) error {
	return nil
}
