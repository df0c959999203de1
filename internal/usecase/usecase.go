package usecase

import "context"

type RecommendationUC interface {
	Embed(ctx context.Context, req *EmbedReq) (*EmbedRes, error)
	Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error)
	RecommendByText(ctx context.Context, req *RecommendByTextReq) (*RecommendByTextRes, error)
	Granularities() []GranularityInfo
}
