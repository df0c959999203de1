package cluster

import (
	"fmt"
	"io"
	"math"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/goccy/go-json"
)

// modelArtifact — формат файла предобученной модели k-means.
type modelArtifact struct {
	NClusters int         `json:"n_clusters"`
	Centroids [][]float64 `json:"centroids"`
	Labels    []int       `json:"labels"`
}

// Model — обученная модель k-means одной гранулярности.
// Помимо центроидов хранит метки строк каталога и обратный индекс кластер → строки.
type Model struct {
	k         domain.Granularity
	dim       int
	centroids [][]float64
	labels    []int
	members   [][]int // members[c]: строки кластера c по возрастанию индекса
}

// NewModel проверяет согласованность модели и строит обратный индекс.
func NewModel(k domain.Granularity, centroids [][]float64, labels []int) (*Model, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: invalid cluster count %d", e.ErrModelCorrupt, k)
	}

	if len(centroids) != int(k) {
		return nil, fmt.Errorf("%w: expected %d centroids, got %d", e.ErrModelCorrupt, k, len(centroids))
	}

	dim := len(centroids[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: centroids have zero dimension", e.ErrModelCorrupt)
	}

	for c, centroid := range centroids {
		if len(centroid) != dim {
			return nil, fmt.Errorf("%w: centroid %d has dimension %d, expected %d", e.ErrModelCorrupt, c, len(centroid), dim)
		}
		for _, v := range centroid {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: centroid %d has non-finite values", e.ErrModelCorrupt, c)
			}
		}
	}

	members := make([][]int, k)
	for row, label := range labels {
		if label < 0 || label >= int(k) {
			return nil, fmt.Errorf("%w: label %d of row %d is outside [0, %d)", e.ErrModelCorrupt, label, row, k)
		}
		members[label] = append(members[label], row)
	}

	return &Model{
		k:         k,
		dim:       dim,
		centroids: centroids,
		labels:    labels,
		members:   members,
	}, nil
}

// ReadModel декодирует артефакт модели и проверяет, что он обучен на k кластеров.
func ReadModel(r io.Reader, k domain.Granularity) (*Model, error) {
	var artifact modelArtifact
	if err := json.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrModelCorrupt, err)
	}

	if artifact.NClusters != int(k) {
		return nil, fmt.Errorf("%w: artifact has n_clusters=%d, expected %d", e.ErrModelCorrupt, artifact.NClusters, k)
	}

	return NewModel(k, artifact.Centroids, artifact.Labels)
}

func (m *Model) Granularity() domain.Granularity { return m.k }

// Dimension возвращает размерность векторов, на которых обучена модель.
func (m *Model) Dimension() int { return m.dim }

// LabelCount возвращает длину массива меток (должна совпадать с числом строк каталога).
func (m *Model) LabelCount() int { return len(m.labels) }

// Predict возвращает ближайший по евклидову расстоянию центроид. При равенстве выигрывает меньший id.
func (m *Model) Predict(vec []float64) (int, error) {
	if len(vec) != m.dim {
		return 0, fmt.Errorf("%w: got %d, model %d expects %d", e.ErrDimensionMismatch, len(vec), m.k, m.dim)
	}

	nearest := 0
	minDist := math.MaxFloat64
	for c, centroid := range m.centroids {
		if dist := squaredEuclidean(vec, centroid); dist < minDist {
			minDist = dist
			nearest = c
		}
	}

	return nearest, nil
}

// Labels возвращает копию массива меток.
func (m *Model) Labels() []int {
	out := make([]int, len(m.labels))
	copy(out, m.labels)
	return out
}

// Members возвращает строки кластера. Срез общий для всех вызовов и не должен изменяться.
func (m *Model) Members(clusterID int) []int {
	if clusterID < 0 || clusterID >= len(m.members) {
		return nil
	}

	return m.members[clusterID]
}

func squaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}
