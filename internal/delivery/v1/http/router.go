package http

import (
	"net/http"

	"github.com/DRSN-tech/ml-recommender/internal/usecase"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	router    *chi.Mux
	logger    logger.Logger
	rateLimit int
}

func NewRouter(router *chi.Mux, rateLimit int, logger logger.Logger) *Router {
	return &Router{router: router, rateLimit: rateLimit, logger: logger}
}

// Init регистрирует middleware и маршруты. ready сообщает, завершена ли загрузка артефактов.
func (r *Router) Init(recUC usecase.RecommendationUC, ready func() bool) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(middleware.Recoverer)
	r.router.Use(metricsMiddleware)

	r.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.router.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !ready() {
			WriteError(w, e.ErrServiceNotReady)
			return
		}
		WriteSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.router.Handle("/metrics", promhttp.Handler())

	r.router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(rateLimit(r.rateLimit))

		recHandler := NewRecommendationHandler(recUC, r.logger)
		registerRecommendationRoutes(v1, recHandler)
	})
}

func registerRecommendationRoutes(router chi.Router, recHandler *RecommendationHandler) {
	router.Post("/embedding", recHandler.embed)
	router.Get("/granularities", recHandler.granularities)
	router.Post("/recommendations", recHandler.recommend)
	router.Post("/recommendations/text", recHandler.recommendByText)
}
