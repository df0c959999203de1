package usecase

import (
	"context"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/internal/engine"
)

type EmbeddingInfra interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type EventPublisher interface {
	PublishRecommendationServed(ctx context.Context, event *RecommendationServed) error
}

// RecommendationEngine — поиск похожих товаров по вектору запроса.
type RecommendationEngine interface {
	Recommend(vec []float64, opts engine.Options) (*engine.Result, error)
	Configs() []domain.GranularityConfig
}

type ModelRegistry interface {
	Has(k domain.Granularity) bool
	Dimension(k domain.Granularity) (int, bool)
}
