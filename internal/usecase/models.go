package usecase

import (
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
)

// EMBEDDING

// EmbedReq — запрос на получение эмбеддинга текста.
type EmbedReq struct {
	Text string
}

type EmbedRes struct {
	Embedding []float64
	Cached    bool
}

// RECOMMENDATIONS

// RecommendReq — запрос похожих товаров по готовому вектору.
// Random и Seed равные nil берутся из конфигурации сервиса.
type RecommendReq struct {
	RequestID     string
	Vector        []float64
	Granularities []domain.Granularity
	Random        *bool
	Seed          *uint64
}

// RecommendRes — выдача: записи товаров в порядке гранулярностей и сводка по секциям.
type RecommendRes struct {
	Products []domain.Product
	Sections []SectionInfo
	Total    int
}

// RecommendByTextReq — запрос похожих товаров по тексту.
type RecommendByTextReq struct {
	RequestID     string
	Text          string
	Granularities []domain.Granularity
	Random        *bool
	Seed          *uint64
}

type RecommendByTextRes struct {
	RecommendRes
	Embedding []float64
}

// SectionInfo — вклад одной гранулярности в выдачу.
type SectionInfo struct {
	Granularity domain.Granularity
	ClusterID   int
	ClusterSize int
	Returned    int
}

// GranularityInfo описывает сконфигурированную гранулярность и состояние её модели.
type GranularityInfo struct {
	Clusters   domain.Granularity
	ResultSize int
	Loaded     bool
	Dimension  int
}

// EVENTS

// RecommendationServed — событие об отданной выдаче.
type RecommendationServed struct {
	RequestID string
	Timestamp time.Time
	Sections  []SectionInfo
	Total     int
}
