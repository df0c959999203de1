package usecase

import "context"

type EmbeddingCacheRepository interface {
	GetEmbedding(ctx context.Context, text string) ([]float64, bool, error)
	SetEmbedding(ctx context.Context, text string, vec []float64) error
}
