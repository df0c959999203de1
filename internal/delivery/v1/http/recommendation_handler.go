package http

import (
	"net/http"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/internal/usecase"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

type embeddingRequest struct {
	Input string `json:"input" validate:"required"`
}

type embeddingResponse struct {
	EmbeddingList []float64 `json:"embedding_list"`
}

type recommendByTextRequest struct {
	Input         string  `json:"input" validate:"required"`
	Granularities []int   `json:"granularities" validate:"omitempty,dive,gt=0"`
	Random        *bool   `json:"random"`
	Seed          *uint64 `json:"seed"`
}

type sectionResponse struct {
	Granularity int `json:"granularity"`
	ClusterID   int `json:"cluster_id"`
	ClusterSize int `json:"cluster_size"`
	Returned    int `json:"returned"`
}

type recommendByTextResponse struct {
	EmbeddingList []float64         `json:"embedding_list"`
	Products      []domain.Product  `json:"products"`
	Sections      []sectionResponse `json:"sections"`
	Total         int               `json:"total"`
}

type granularityResponse struct {
	Clusters   int  `json:"clusters"`
	ResultSize int  `json:"result_size"`
	Loaded     bool `json:"loaded"`
	Dimension  int  `json:"dimension,omitempty"`
}

type RecommendationHandler struct {
	recommendationUC usecase.RecommendationUC
	logger           logger.Logger
}

func NewRecommendationHandler(recommendationUC usecase.RecommendationUC, logger logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{recommendationUC: recommendationUC, logger: logger}
}

// embed возвращает эмбеддинг текста: {"input": "..."} → {"embedding_list": [...]}.
func (h *RecommendationHandler) embed(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.recommendationUC.Embed(r.Context(), &usecase.EmbedReq{Text: req.Input})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, embeddingResponse{EmbeddingList: res.Embedding})
}

// recommend принимает вектор запроса JSON-массивом и возвращает массив записей товаров.
// Параметры: granularity (повторяемый), random, seed.
func (h *RecommendationHandler) recommend(w http.ResponseWriter, r *http.Request) {
	granularities, err := parseGranularities(r.URL.Query()["granularity"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	random, err := parseOptionalBool(r, "random")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	seed, err := parseOptionalUint(r, "seed")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var vector []float64
	if err := decodeJSON(w, r, &vector); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.recommendationUC.Recommend(r.Context(), &usecase.RecommendReq{
		RequestID:     middleware.GetReqID(r.Context()),
		Vector:        vector,
		Granularities: granularities,
		Random:        random,
		Seed:          seed,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	products := res.Products
	if products == nil {
		products = []domain.Product{}
	}

	WriteSuccess(w, http.StatusOK, products)
}

func (h *RecommendationHandler) recommendByText(w http.ResponseWriter, r *http.Request) {
	var req recommendByTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.recommendationUC.RecommendByText(r.Context(), &usecase.RecommendByTextReq{
		RequestID:     middleware.GetReqID(r.Context()),
		Text:          req.Input,
		Granularities: toGranularities(req.Granularities),
		Random:        req.Random,
		Seed:          req.Seed,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	products := res.Products
	if products == nil {
		products = []domain.Product{}
	}

	sections := make([]sectionResponse, len(res.Sections))
	for i, s := range res.Sections {
		sections[i] = sectionResponse{
			Granularity: int(s.Granularity),
			ClusterID:   s.ClusterID,
			ClusterSize: s.ClusterSize,
			Returned:    s.Returned,
		}
	}

	WriteSuccess(w, http.StatusOK, recommendByTextResponse{
		EmbeddingList: res.Embedding,
		Products:      products,
		Sections:      sections,
		Total:         res.Total,
	})
}

func (h *RecommendationHandler) granularities(w http.ResponseWriter, r *http.Request) {
	infos := h.recommendationUC.Granularities()

	out := make([]granularityResponse, len(infos))
	for i, info := range infos {
		out[i] = granularityResponse{
			Clusters:   int(info.Clusters),
			ResultSize: info.ResultSize,
			Loaded:     info.Loaded,
			Dimension:  info.Dimension,
		}
	}

	WriteSuccess(w, http.StatusOK, out)
}

func (h *RecommendationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, _ := ToHTTPResponse(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf(err, "%d %s %s", code, r.Method, r.URL.Path)
	} else {
		h.logger.Warnf("%d %s %s: %s", code, r.Method, r.URL.Path, err.Error())
	}

	WriteError(w, err)
}
