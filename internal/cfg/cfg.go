package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/jimlawless/whereami"
)

const (
	ArtifactSourceFS    = "fs"
	ArtifactSourceMinio = "minio"
)

type Config struct {
	Http      *HTTPConfig
	Grpc      *GRPCConfig
	Artifacts *ArtifactCfg
	Minio     *MinIOCfg
	Redis     *RedisCfg
	Embedding *EmbeddingCfg
	Kafka     *KafkaCfg
	Recommend *RecommendCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    int // запросов в минуту с одного IP, 0 отключает ограничение
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

// ArtifactCfg описывает, откуда читать каталог и модели кластеризации.
type ArtifactCfg struct {
	Source           string   // fs или minio
	Dir              string   // каталог (fs) или префикс объектов (minio)
	CatalogParts     []string // файлы частей каталога в порядке конкатенации
	CategoriesFile   string
	ModelFilePattern string // шаблон имени файла модели, %d заменяется на K
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Бакет с артефактами каталога и моделей
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
}

type RedisCfg struct {
	Enabled      bool
	Addr         string
	Password     string
	User         string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	Timeout      time.Duration
	EmbeddingTTL time.Duration
}

type EmbeddingCfg struct {
	URL        string
	ModelName  string // участвует в ключе кэша, чтобы смена модели не отдавала старые векторы
	Timeout    time.Duration
	Budget     time.Duration // общий лимит на все попытки, должен быть меньше HTTP_WRITE_TIMEOUT
	MaxRetries int
	Dimension  int // ожидаемая размерность, 0 отключает проверку
}

type KafkaCfg struct {
	Enabled           bool
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type RecommendCfg struct {
	Granularities []domain.GranularityConfig
	Random        bool
	Seed          *uint64 // фиксированный seed для детерминированной выдачи, при nil случайный на каждый запрос
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	artifacts, err := loadArtifactCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log, artifacts.Source == ArtifactSourceMinio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	embedding, err := loadEmbeddingCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if embedding.Budget >= http.WriteTimeout {
		log.Errorf(e.ErrIncorrectEnvVariable, "EMBEDDING_BUDGET %v must be below HTTP_WRITE_TIMEOUT %v", embedding.Budget, http.WriteTimeout)
		return nil, e.Wrap("EMBEDDING_BUDGET", e.ErrIncorrectEnvVariable)
	}

	kafka, err := loadKafkaCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recommend, err := loadRecommendCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:      http,
		Grpc:      loadGRPCConfig(),
		Artifacts: artifacts,
		Minio:     minio,
		Redis:     redis,
		Embedding: embedding,
		Kafka:     kafka,
		Recommend: recommend,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 30 * time.Second
		defaultIdleTimeout  = 60 * time.Second
		defaultRateLimit    = 600
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	rateLimit, err := parseIntEnv("HTTP_RATE_LIMIT", defaultRateLimit)
	if err != nil || rateLimit < 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid HTTP_RATE_LIMIT")
		return nil, e.Wrap("HTTP_RATE_LIMIT", e.ErrIncorrectEnvVariable)
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		RateLimit:    rateLimit,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadArtifactCfg() (*ArtifactCfg, error) {
	const (
		defaultSource         = ArtifactSourceFS
		defaultDir            = "data"
		defaultParts          = "amazon_products_part_0.csv,amazon_products_part_1.csv,amazon_products_part_2.csv,amazon_products_part_3.csv,amazon_products_part_4.csv"
		defaultCategoriesFile = "amazon_categories.csv"
		defaultModelPattern   = "kmeans%d.json"
	)

	source := strings.ToLower(getEnvOrDefault("ARTIFACT_SOURCE", defaultSource))
	if source != ArtifactSourceFS && source != ArtifactSourceMinio {
		return nil, e.Wrap(fmt.Sprintf("ARTIFACT_SOURCE=%q", source), e.ErrIncorrectEnvVariable)
	}

	pattern := getEnvOrDefault("MODEL_FILE_PATTERN", defaultModelPattern)
	if strings.Count(pattern, "%d") != 1 {
		return nil, e.Wrap(fmt.Sprintf("MODEL_FILE_PATTERN=%q must contain exactly one %%d", pattern), e.ErrIncorrectEnvVariable)
	}

	parts := splitList(getEnvOrDefault("CATALOG_PARTS", defaultParts))
	if len(parts) == 0 {
		return nil, e.Wrap("CATALOG_PARTS", e.ErrIncorrectEnvVariable)
	}

	return &ArtifactCfg{
		Source:           source,
		Dir:              getEnvOrDefault("ARTIFACT_DIR", defaultDir),
		CatalogParts:     parts,
		CategoriesFile:   getEnvOrDefault("CATEGORIES_FILE", defaultCategoriesFile),
		ModelFilePattern: pattern,
	}, nil
}

func loadMinIOCfg(log logger.Logger, required bool) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	bucket := getEnv("BUCKET_NAME")
	if required && bucket == "" {
		err := fmt.Errorf("BUCKET_NAME is required when ARTIFACT_SOURCE=minio")
		log.Errorf(err, "missing BUCKET_NAME")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        bucket,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultEmbeddingTTL = 24 * time.Hour
	)

	enabled, err := strconv.ParseBool(getEnvOrDefault("REDIS_ENABLED", "false"))
	if err != nil {
		log.Errorf(err, "invalid REDIS_ENABLED")
		return nil, err
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	embeddingTTL, err := parseDurationEnv("EMBEDDING_CACHE_TTL", defaultEmbeddingTTL)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_CACHE_TTL")
		return nil, err
	}

	return &RedisCfg{
		Enabled:      enabled,
		Addr:         getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:     getEnv("REDIS_PASSWORD"),
		User:         getEnv("REDIS_USER"),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		Timeout:      max(readTimeout, writeTimeout),
		EmbeddingTTL: embeddingTTL,
	}, nil
}

func loadEmbeddingCfg(log logger.Logger) (*EmbeddingCfg, error) {
	const (
		defaultURL        = "http://ml-models:6000/"
		defaultModelName  = "all-MiniLM-L6-v2"
		defaultTimeout    = 10 * time.Second
		defaultBudget     = 20 * time.Second
		defaultMaxRetries = 3
		defaultDimension  = 384
	)

	timeout, err := parseDurationEnv("EMBEDDING_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_TIMEOUT")
		return nil, err
	}

	budget, err := parseDurationEnv("EMBEDDING_BUDGET", defaultBudget)
	if err != nil || budget <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid EMBEDDING_BUDGET")
		return nil, e.Wrap("EMBEDDING_BUDGET", e.ErrIncorrectEnvVariable)
	}

	maxRetries, err := parseIntEnv("EMBEDDING_MAX_RETRIES", defaultMaxRetries)
	if err != nil || maxRetries < 1 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid EMBEDDING_MAX_RETRIES")
		return nil, e.Wrap("EMBEDDING_MAX_RETRIES", e.ErrIncorrectEnvVariable)
	}

	dimension, err := parseIntEnv("EMBEDDING_DIMENSION", defaultDimension)
	if err != nil || dimension < 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid EMBEDDING_DIMENSION")
		return nil, e.Wrap("EMBEDDING_DIMENSION", e.ErrIncorrectEnvVariable)
	}

	return &EmbeddingCfg{
		URL:        getEnvOrDefault("EMBEDDING_URL", defaultURL),
		ModelName:  getEnvOrDefault("EMBEDDING_MODEL", defaultModelName),
		Timeout:    timeout,
		Budget:     budget,
		MaxRetries: maxRetries,
		Dimension:  dimension,
	}, nil
}

// loadKafkaCfg: публикация событий включается только при заданном KAFKA_BROKERS.
func loadKafkaCfg(log logger.Logger) (*KafkaCfg, error) {
	const (
		defaultTopic             = "recommendations.served"
		defaultNetworkMode       = "tcp"
		defaultPartitions        = 3
		defaultReplicationFactor = 1
	)

	brokers := splitList(getEnv("KAFKA_BROKERS"))

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil || partitions <= 0 {
		log.Errorf(err, "invalid KAFKA_PARTITIONS")
		return nil, e.Wrap("KAFKA_PARTITIONS", e.ErrIncorrectEnvVariable)
	}

	replicationFactor, err := parseIntEnv("KAFKA_REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil || replicationFactor <= 0 {
		log.Errorf(err, "invalid KAFKA_REPLICATION_FACTOR")
		return nil, e.Wrap("KAFKA_REPLICATION_FACTOR", e.ErrIncorrectEnvVariable)
	}

	return &KafkaCfg{
		Enabled:           len(brokers) > 0,
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
	}, nil
}

func loadRecommendCfg(log logger.Logger) (*RecommendCfg, error) {
	granularities, err := loadGranularities(getEnv("RECOMMEND_CONFIG_PATH"), getEnv("GRANULARITIES"))
	if err != nil {
		log.Errorf(err, "invalid granularity configuration")
		return nil, err
	}

	random, err := strconv.ParseBool(getEnvOrDefault("RECOMMEND_RANDOM", "true"))
	if err != nil {
		log.Errorf(err, "invalid RECOMMEND_RANDOM")
		return nil, err
	}

	var seed *uint64
	if v := getEnv("RECOMMEND_SEED"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			log.Errorf(err, "invalid RECOMMEND_SEED")
			return nil, e.Wrap("RECOMMEND_SEED", e.ErrIncorrectEnvVariable)
		}
		seed = &parsed
	}

	return &RecommendCfg{
		Granularities: granularities,
		Random:        random,
		Seed:          seed,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

// splitList разбивает список через запятую, отбрасывая пустые элементы.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
