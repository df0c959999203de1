package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/catalog"
	config "github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/internal/cluster"
	v1Grpc "github.com/DRSN-tech/ml-recommender/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/ml-recommender/internal/delivery/v1/http"
	"github.com/DRSN-tech/ml-recommender/internal/engine"
	"github.com/DRSN-tech/ml-recommender/internal/infrastructure/embedding"
	"github.com/DRSN-tech/ml-recommender/internal/infrastructure/kafka"
	"github.com/DRSN-tech/ml-recommender/internal/metrics"
	fsRepo "github.com/DRSN-tech/ml-recommender/internal/repository/fs"
	s3Repo "github.com/DRSN-tech/ml-recommender/internal/repository/minio"
	"github.com/DRSN-tech/ml-recommender/internal/repository/redis"
	"github.com/DRSN-tech/ml-recommender/internal/usecase"
	"github.com/DRSN-tech/ml-recommender/pkg/clients"
	"github.com/DRSN-tech/ml-recommender/pkg/closer"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	startupTimeout      = 5 * time.Minute
	dependencyTimeout   = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
	kafkaTopicTimeout   = 5 * time.Second
	closerForcedTimeout = 2 * time.Second
)

// ArtifactSource — хранилище артефактов каталога и моделей (локальный каталог или бакет MinIO).
type ArtifactSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe(name string) string
}

// App — собранный сервис рекомендаций. Каталог, реестр моделей и движок
// загружаются в NewApp и дальше не меняются.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	closer  *closer.Closer
	httpSrv *v1Http.Server
	grpcSrv *v1Grpc.GRPCServer
	ready   atomic.Bool
}

// NewApp выполняет загрузку артефактов и сборку зависимостей.
// Отсутствующий или повреждённый каталог и повреждённая модель прерывают запуск.
func NewApp(cfg *config.Config, logger logger.Logger) (*App, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	a := &App{
		cfg:    cfg,
		logger: logger,
		closer: closer.NewCloser(closerForcedTimeout),
	}

	src, err := a.initArtifactSource(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	for _, part := range cfg.Artifacts.CatalogParts {
		logger.Debugf("catalog part: %s", src.Describe(part))
	}
	logger.Infof("loading catalog: %d parts, categories %s", len(cfg.Artifacts.CatalogParts), src.Describe(cfg.Artifacts.CategoriesFile))
	store, err := catalog.Load(ctx, src, cfg.Artifacts.CatalogParts, cfg.Artifacts.CategoriesFile, logger)
	if err != nil {
		logger.Errorf(err, "failed to load catalog")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	metrics.CatalogRows.Set(float64(store.RowCount()))
	logger.Infof("catalog loaded: %d products, %d columns", store.RowCount(), len(store.Columns()))

	granularities := cfg.Recommend.Granularities
	registry, err := cluster.LoadRegistry(ctx, src, granularities, cfg.Artifacts.ModelFilePattern, store.RowCount(), logger)
	if err != nil {
		logger.Errorf(err, "failed to load cluster models")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	for _, g := range granularities {
		metrics.SetGranularityLoaded(g.Clusters, registry.Has(g.Clusters))
	}

	en, err := engine.New(store, registry, granularities, logger)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	cacheRepo := a.initEmbeddingCache(ctx)
	events := a.initEventPublisher()
	embedder := embedding.NewClient(cfg.Embedding, logger)

	recUC := usecase.NewRecommendationUC(en, registry, embedder, cacheRepo, events, cfg.Recommend, logger)

	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, logger)
	a.closer.Add("grpc server", a.grpcSrv.Stop)

	r := chi.NewRouter()
	v1Http.NewRouter(r, cfg.Http.RateLimit, logger).Init(recUC, a.ready.Load)
	a.httpSrv = v1Http.NewServer(r, cfg.Http)
	a.closer.Add("http server", a.httpSrv.Stop)

	return a, nil
}

// Run запускает серверы и блокируется до сигнала остановки или ошибки сервера.
func (a *App) Run() error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	a.ready.Store(true)
	a.grpcSrv.SetServing(true)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	a.ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func (a *App) initArtifactSource(ctx context.Context) (ArtifactSource, error) {
	switch a.cfg.Artifacts.Source {
	case config.ArtifactSourceMinio:
		minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
		if err != nil {
			a.logger.Errorf(err, "failed to initialize minio client")
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		minioCtx, minioCancel := context.WithTimeout(ctx, dependencyTimeout)
		defer minioCancel()
		if err := clients.CheckBucket(minioCtx, minioClient, a.cfg.Minio.BucketName); err != nil {
			a.logger.Errorf(err, "failed to access MinIO bucket")
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		return s3Repo.NewArtifactRepo(minioClient, a.cfg.Minio, a.cfg.Artifacts.Dir), nil
	case config.ArtifactSourceFS:
		return fsRepo.NewArtifactRepo(a.cfg.Artifacts.Dir), nil
	default:
		return nil, e.Wrap(fmt.Sprintf("artifact source %q", a.cfg.Artifacts.Source), e.ErrIncorrectEnvVariable)
	}
}

// initEmbeddingCache подключает Redis. Недоступный Redis не мешает запуску: ошибки кэша только логируются.
func (a *App) initEmbeddingCache(ctx context.Context) usecase.EmbeddingCacheRepository {
	if !a.cfg.Redis.Enabled {
		a.logger.Infof("embedding cache disabled")
		return redis.NopEmbeddingCache{}
	}

	redisClient := clients.NewRedisClient(a.cfg.Redis)
	a.closer.Add("redis", func(context.Context) error {
		return redisClient.Close()
	})

	redisCtx, redisCancel := context.WithTimeout(ctx, dependencyTimeout)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		a.logger.Warnf("redis is unreachable, embedding cache will miss until it recovers: %v", err)
	}

	return redis.NewEmbeddingCacheRepo(redisClient, a.cfg.Embedding.ModelName, a.cfg.Embedding.Dimension, a.cfg.Redis)
}

func (a *App) initEventPublisher() usecase.EventPublisher {
	if !a.cfg.Kafka.Enabled {
		a.logger.Infof("recommendation events disabled: KAFKA_BROKERS is not set")
		return kafka.NopPublisher{}
	}

	producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
	a.closer.Add("kafka producer", func(context.Context) error {
		return producer.Close()
	})

	if err := producer.EnsureTopic(kafkaTopicTimeout); err != nil {
		a.logger.Warnf("kafka topic %s is not ensured, events may be dropped: %v", a.cfg.Kafka.Topic, err)
	}

	return producer
}
