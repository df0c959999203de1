package cfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGranularitiesDefaults(t *testing.T) {
	got, err := loadGranularities("", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultGranularities(), got)
}

func TestLoadGranularitiesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recommend.yaml")
	content := `granularities:
  - clusters: 1000
    result_size: 20
  - clusters: 150
    result_size: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := loadGranularities(path, "")
	require.NoError(t, err)
	assert.Equal(t, []domain.GranularityConfig{
		domain.NewGranularityConfig(1000, 20),
		domain.NewGranularityConfig(150, 5),
	}, got)
}

func TestLoadGranularitiesEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recommend.yaml")
	require.NoError(t, os.WriteFile(path, []byte("granularities:\n  - clusters: 10\n    result_size: 1\n"), 0o600))

	got, err := loadGranularities(path, "150:3, 6500:7")
	require.NoError(t, err)
	assert.Equal(t, []domain.GranularityConfig{
		domain.NewGranularityConfig(150, 3),
		domain.NewGranularityConfig(6500, 7),
	}, got)
}

func TestLoadGranularitiesMissingFile(t *testing.T) {
	_, err := loadGranularities(filepath.Join(t.TempDir(), "absent.yaml"), "")
	require.Error(t, err)
}

func TestLoadGranularitiesRejectsInvalid(t *testing.T) {
	tests := []string{"150", "abc:10", "150:x", "150:10,150:5", "0:10", "150:0"}
	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			_, err := loadGranularities("", tt)
			require.Error(t, err)
			assert.ErrorIs(t, err, e.ErrInvalidGranularity)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RECOMMEND_SEED", "")
	t.Setenv("ARTIFACT_SOURCE", "")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Http.Port)
	assert.Equal(t, ArtifactSourceFS, c.Artifacts.Source)
	assert.Len(t, c.Artifacts.CatalogParts, 5)
	assert.Equal(t, "kmeans%d.json", c.Artifacts.ModelFilePattern)
	assert.False(t, c.Kafka.Enabled)
	assert.True(t, c.Recommend.Random)
	assert.Nil(t, c.Recommend.Seed)
	assert.Equal(t, 384, c.Embedding.Dimension)
	assert.Less(t, c.Embedding.Budget, c.Http.WriteTimeout)
}

func TestLoadRejectsEmbeddingBudgetAboveWriteTimeout(t *testing.T) {
	t.Setenv("ARTIFACT_SOURCE", "")
	t.Setenv("HTTP_WRITE_TIMEOUT", "15s")
	t.Setenv("EMBEDDING_BUDGET", "20s")

	_, err := Load(logger.NewNopLogger())
	assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("RECOMMEND_SEED", "42")
	t.Setenv("CATALOG_PARTS", "a.csv,b.csv")
	t.Setenv("GRANULARITIES", "150:10")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Kafka.Brokers)
	require.NotNil(t, c.Recommend.Seed)
	assert.Equal(t, uint64(42), *c.Recommend.Seed)
	assert.Equal(t, []string{"a.csv", "b.csv"}, c.Artifacts.CatalogParts)
	assert.Equal(t, []domain.GranularityConfig{domain.NewGranularityConfig(150, 10)}, c.Recommend.Granularities)
}

func TestLoadRejectsBadModelPattern(t *testing.T) {
	t.Setenv("MODEL_FILE_PATTERN", "kmeans.json")

	_, err := Load(logger.NewNopLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
}

func TestLoadMinioRequiresBucket(t *testing.T) {
	t.Setenv("ARTIFACT_SOURCE", "minio")
	t.Setenv("BUCKET_NAME", "")

	_, err := Load(logger.NewNopLogger())
	require.Error(t, err)
}

func TestLoadKafkaTopicSettings(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("KAFKA_PARTITIONS", "6")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 6, c.Kafka.Partitions)
	assert.Equal(t, 1, c.Kafka.ReplicationFactor)
	assert.Equal(t, "recommendations.served", c.Kafka.Topic)

	t.Setenv("KAFKA_PARTITIONS", "0")
	_, err = Load(logger.NewNopLogger())
	assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
}
