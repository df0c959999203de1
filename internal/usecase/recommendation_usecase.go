package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/internal/engine"
	"github.com/DRSN-tech/ml-recommender/internal/metrics"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
)

const backgroundTimeout = 500 * time.Millisecond

// RecommendationUseCase связывает сервис эмбеддингов, кэш, движок выдачи и публикацию событий.
type RecommendationUseCase struct {
	engine    RecommendationEngine
	models    ModelRegistry
	embedder  EmbeddingInfra
	cacheRepo EmbeddingCacheRepository
	events    EventPublisher
	cfg       *cfg.RecommendCfg
	logger    logger.Logger
}

func NewRecommendationUC(
	engine RecommendationEngine,
	models ModelRegistry,
	embedder EmbeddingInfra,
	cacheRepo EmbeddingCacheRepository,
	events EventPublisher,
	cfg *cfg.RecommendCfg,
	logger logger.Logger,
) *RecommendationUseCase {
	return &RecommendationUseCase{
		engine:    engine,
		models:    models,
		embedder:  embedder,
		cacheRepo: cacheRepo,
		events:    events,
		cfg:       cfg,
		logger:    logger,
	}
}

// Embed возвращает эмбеддинг текста, сначала обращаясь к кэшу.
// Ошибки кэша только логируются.
func (uc *RecommendationUseCase) Embed(ctx context.Context, req *EmbedReq) (*EmbedRes, error) {
	const op = "RecommendationUseCase.Embed"

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, e.Wrap(op, e.ErrTextRequired)
	}

	vec, hit, err := uc.cacheRepo.GetEmbedding(ctx, text)
	if err != nil {
		uc.logger.Warnf("embedding cache read failed: %v", e.Wrap(op, err))
	}
	metrics.RecordEmbeddingCache(hit)
	if hit {
		return &EmbedRes{Embedding: vec, Cached: true}, nil
	}

	vec, err = uc.embedder.Embed(ctx, text)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		if err := uc.cacheRepo.SetEmbedding(bgCtx, text, vec); err != nil {
			uc.logger.Warnf("Failed to cache embedding in background: %v", e.Wrap(op, err))
		}
	}()

	return &EmbedRes{Embedding: vec}, nil
}

// Recommend возвращает товары из кластеров вектора запроса и публикует событие о выдаче.
func (uc *RecommendationUseCase) Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error) {
	const op = "RecommendationUseCase.Recommend"

	opts := uc.options(req.Granularities, req.Random, req.Seed)

	start := time.Now()
	result, err := uc.engine.Recommend(req.Vector, opts)
	metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res := toRecommendRes(result)
	for _, s := range res.Sections {
		metrics.RecordSection(s.Granularity, s.ClusterSize, s.Returned)
	}

	uc.publishServed(req.RequestID, res)

	return res, nil
}

// RecommendByText вычисляет эмбеддинг текста и возвращает по нему выдачу.
func (uc *RecommendationUseCase) RecommendByText(ctx context.Context, req *RecommendByTextReq) (*RecommendByTextRes, error) {
	const op = "RecommendationUseCase.RecommendByText"

	embedded, err := uc.Embed(ctx, &EmbedReq{Text: req.Text})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res, err := uc.Recommend(ctx, &RecommendReq{
		RequestID:     req.RequestID,
		Vector:        embedded.Embedding,
		Granularities: req.Granularities,
		Random:        req.Random,
		Seed:          req.Seed,
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &RecommendByTextRes{
		RecommendRes: *res,
		Embedding:    embedded.Embedding,
	}, nil
}

// Granularities возвращает сконфигурированные гранулярности в порядке выдачи.
func (uc *RecommendationUseCase) Granularities() []GranularityInfo {
	configs := uc.engine.Configs()

	out := make([]GranularityInfo, 0, len(configs))
	for _, c := range configs {
		dim, _ := uc.models.Dimension(c.Clusters)
		out = append(out, GranularityInfo{
			Clusters:   c.Clusters,
			ResultSize: c.ResultSize,
			Loaded:     uc.models.Has(c.Clusters),
			Dimension:  dim,
		})
	}

	return out
}

func (uc *RecommendationUseCase) options(granularities []domain.Granularity, random *bool, seed *uint64) engine.Options {
	opts := engine.DefaultOptions()
	opts.Granularities = granularities
	opts.Random = uc.cfg.Random
	opts.Seed = uc.cfg.Seed

	if random != nil {
		opts.Random = *random
	}
	if seed != nil {
		opts.Seed = seed
	}

	return opts
}

// publishServed отправляет событие в фоне, не задерживая ответ.
func (uc *RecommendationUseCase) publishServed(requestID string, res *RecommendRes) {
	const op = "RecommendationUseCase.publishServed"

	event := &RecommendationServed{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Sections:  res.Sections,
		Total:     res.Total,
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		if err := uc.events.PublishRecommendationServed(bgCtx, event); err != nil {
			uc.logger.Warnf("Failed to publish recommendation event: %v", e.Wrap(op, err))
		}
	}()
}

func toRecommendRes(result *engine.Result) *RecommendRes {
	sections := make([]SectionInfo, len(result.Sections))
	for i, s := range result.Sections {
		sections[i] = SectionInfo{
			Granularity: s.Granularity,
			ClusterID:   s.ClusterID,
			ClusterSize: s.ClusterSize,
			Returned:    s.Returned,
		}
	}

	return &RecommendRes{
		Products: result.Products(),
		Sections: sections,
		Total:    result.Total(),
	}
}
