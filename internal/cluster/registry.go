package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Source открывает артефакт по имени.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Registry хранит по одной модели на каждую загруженную гранулярность.
// Не изменяется после создания и безопасен для конкурентного чтения.
type Registry struct {
	configs []domain.GranularityConfig
	models  map[domain.Granularity]*Model
}

// NewRegistry собирает реестр. Модели допускаются только для сконфигурированных гранулярностей,
// и число меток каждой модели должно совпадать с rowCount.
func NewRegistry(configs []domain.GranularityConfig, models map[domain.Granularity]*Model, rowCount int) (*Registry, error) {
	if err := domain.ValidateGranularityConfigs(configs); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrInvalidGranularity, err)
	}

	configured := make(map[domain.Granularity]struct{}, len(configs))
	for _, c := range configs {
		configured[c.Clusters] = struct{}{}
	}

	for k, m := range models {
		if _, ok := configured[k]; !ok {
			return nil, fmt.Errorf("%w: model for %d clusters is not configured", e.ErrInvalidGranularity, k)
		}
		if m.Granularity() != k {
			return nil, fmt.Errorf("%w: model registered as %d has %d clusters", e.ErrModelCorrupt, k, m.Granularity())
		}
		if m.LabelCount() != rowCount {
			return nil, fmt.Errorf("%w: model %d has %d labels, catalog has %d rows", e.ErrLabelsMismatch, k, m.LabelCount(), rowCount)
		}
	}

	return &Registry{
		configs: configs,
		models:  models,
	}, nil
}

// LoadRegistry параллельно загружает модели всех сконфигурированных гранулярностей.
// Отсутствующий артефакт: гранулярность пропускается с предупреждением.
// Повреждённый артефакт или несовпадение числа меток возвращают ошибку.
func LoadRegistry(
	ctx context.Context,
	src Source,
	configs []domain.GranularityConfig,
	pattern string,
	rowCount int,
	log logger.Logger,
) (*Registry, error) {
	const op = "cluster.LoadRegistry"

	loaded := make([]*Model, len(configs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, c := range configs {
		g.Go(func() error {
			name := ArtifactName(pattern, c.Clusters)

			m, err := loadModel(gCtx, src, name, c.Clusters)
			if errors.Is(err, e.ErrArtifactNotFound) {
				log.Warnf("cluster model %s not found, granularity %d is disabled", name, c.Clusters)
				return nil
			}
			if err != nil {
				return e.Wrap(name, err)
			}

			loaded[i] = m
			log.Infof("cluster model %s loaded: %d clusters, dimension %d", name, c.Clusters, m.Dimension())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, e.Wrap(op, err)
	}

	models := make(map[domain.Granularity]*Model, len(configs))
	for _, m := range loaded {
		if m != nil {
			models[m.Granularity()] = m
		}
	}

	registry, err := NewRegistry(configs, models, rowCount)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(models) == 0 {
		log.Warnf("no cluster models loaded, recommendations will be empty")
	}

	return registry, nil
}

// ArtifactName возвращает имя файла модели для гранулярности по шаблону (например, kmeans%d.json).
func ArtifactName(pattern string, k domain.Granularity) string {
	return fmt.Sprintf(pattern, int(k))
}

func loadModel(ctx context.Context, src Source, name string, k domain.Granularity) (*Model, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ReadModel(rc, k)
}

// Configured возвращает сконфигурированные гранулярности в порядке выдачи.
func (r *Registry) Configured() []domain.GranularityConfig {
	out := make([]domain.GranularityConfig, len(r.configs))
	copy(out, r.configs)
	return out
}

// Has сообщает, загружена ли модель для гранулярности.
func (r *Registry) Has(k domain.Granularity) bool {
	_, ok := r.models[k]
	return ok
}

// Loaded возвращает загруженные гранулярности в порядке конфигурации.
func (r *Registry) Loaded() []domain.Granularity {
	out := make([]domain.Granularity, 0, len(r.models))
	for _, c := range r.configs {
		if r.Has(c.Clusters) {
			out = append(out, c.Clusters)
		}
	}

	return out
}

// Dimension возвращает размерность модели гранулярности k.
func (r *Registry) Dimension(k domain.Granularity) (int, bool) {
	m, ok := r.models[k]
	if !ok {
		return 0, false
	}

	return m.Dimension(), true
}

// PredictCluster возвращает кластер запроса для гранулярности k.
func (r *Registry) PredictCluster(k domain.Granularity, vec []float64) (int, error) {
	m, err := r.model(k)
	if err != nil {
		return 0, err
	}

	return m.Predict(vec)
}

// LabelsFor возвращает копию меток строк каталога для гранулярности k.
func (r *Registry) LabelsFor(k domain.Granularity) ([]int, error) {
	m, err := r.model(k)
	if err != nil {
		return nil, err
	}

	return m.Labels(), nil
}

// Members возвращает строки каталога кластера clusterID гранулярности k по возрастанию индекса.
// Срез общий и не должен изменяться вызывающим кодом.
func (r *Registry) Members(k domain.Granularity, clusterID int) ([]int, error) {
	m, err := r.model(k)
	if err != nil {
		return nil, err
	}

	return m.Members(clusterID), nil
}

func (r *Registry) model(k domain.Granularity) (*Model, error) {
	m, ok := r.models[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d (supported: %s)", e.ErrUnsupportedGranularity, k, domain.FormatGranularities(r.Loaded()))
	}

	return m, nil
}
