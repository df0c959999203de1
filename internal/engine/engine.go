// Package engine реализует выдачу похожих товаров: запрос относится к кластеру
// каждой гранулярности, из кластера берётся до R_K товаров, секции склеиваются
// в порядке конфигурации.
package engine

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
)

// Catalog — источник записей товаров по индексу строки.
type Catalog interface {
	GetRows(indices []int) ([]domain.Product, error)
}

// Models — реестр моделей кластеризации.
type Models interface {
	Has(k domain.Granularity) bool
	Dimension(k domain.Granularity) (int, bool)
	PredictCluster(k domain.Granularity, vec []float64) (int, error)
	Members(k domain.Granularity, clusterID int) ([]int, error)
}

// Options управляет одним вызовом Recommend.
type Options struct {
	// Granularities ограничивает выдачу подмножеством сконфигурированных K. Пустой список означает все.
	Granularities []domain.Granularity
	// Random перемешивает членов кластера перед усечением до R_K.
	Random bool
	// Seed фиксирует перемешивание. При nil используется новое случайное состояние на каждый вызов.
	Seed *uint64
}

func DefaultOptions() Options {
	return Options{Random: true}
}

// Hit — одна строка выдачи.
type Hit struct {
	Granularity domain.Granularity
	ClusterID   int
	Product     domain.Product
}

// Section описывает вклад одной гранулярности в выдачу.
type Section struct {
	Granularity domain.Granularity
	ClusterID   int
	ClusterSize int
	Returned    int
}

type Result struct {
	Hits     []Hit
	Sections []Section
}

// Products возвращает записи товаров в порядке выдачи.
func (r *Result) Products() []domain.Product {
	out := make([]domain.Product, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.Product
	}

	return out
}

func (r *Result) Total() int {
	return len(r.Hits)
}

// Engine не изменяется после создания и безопасен для конкурентного использования.
type Engine struct {
	catalog Catalog
	models  Models
	configs []domain.GranularityConfig
	log     logger.Logger
}

func New(catalog Catalog, models Models, configs []domain.GranularityConfig, log logger.Logger) (*Engine, error) {
	if err := domain.ValidateGranularityConfigs(configs); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrInvalidGranularity, err)
	}

	return &Engine{
		catalog: catalog,
		models:  models,
		configs: configs,
		log:     log,
	}, nil
}

// Configs возвращает сконфигурированные гранулярности в порядке выдачи.
func (en *Engine) Configs() []domain.GranularityConfig {
	out := make([]domain.GranularityConfig, len(en.configs))
	copy(out, en.configs)
	return out
}

// Recommend возвращает товары из кластеров запроса по всем участвующим гранулярностям.
// Ошибка валидации отклоняет запрос целиком до какой-либо работы.
func (en *Engine) Recommend(vec []float64, opts Options) (*Result, error) {
	const op = "Engine.Recommend"

	if err := validateVector(vec); err != nil {
		return nil, e.Wrap(op, err)
	}

	active, err := en.resolve(opts.Granularities)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	for _, c := range active {
		dim, _ := en.models.Dimension(c.Clusters)
		if dim != len(vec) {
			return nil, e.Wrap(op, fmt.Errorf("%w: got %d, granularity %d expects %d", e.ErrDimensionMismatch, len(vec), c.Clusters, dim))
		}
	}

	var rng *rand.Rand
	if opts.Random {
		rng = newRand(opts.Seed)
	}

	res := &Result{
		Sections: make([]Section, 0, len(active)),
	}
	for _, c := range active {
		clusterID, err := en.models.PredictCluster(c.Clusters, vec)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		members, err := en.models.Members(c.Clusters, clusterID)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		rows := pick(members, c.ResultSize, rng)
		products, err := en.catalog.GetRows(rows)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		for _, p := range products {
			res.Hits = append(res.Hits, Hit{
				Granularity: c.Clusters,
				ClusterID:   clusterID,
				Product:     p,
			})
		}
		res.Sections = append(res.Sections, Section{
			Granularity: c.Clusters,
			ClusterID:   clusterID,
			ClusterSize: len(members),
			Returned:    len(products),
		})

		en.log.Debugf("granularity %d: cluster %d of size %d, returned %d", c.Clusters, clusterID, len(members), len(products))
	}

	return res, nil
}

// resolve отбирает участвующие гранулярности в порядке конфигурации.
// Неизвестная K даёт ошибку. Сконфигурированная, но не загруженная K пропускается.
func (en *Engine) resolve(requested []domain.Granularity) ([]domain.GranularityConfig, error) {
	var want map[domain.Granularity]struct{}
	if len(requested) > 0 {
		configured := make(map[domain.Granularity]struct{}, len(en.configs))
		for _, c := range en.configs {
			configured[c.Clusters] = struct{}{}
		}

		want = make(map[domain.Granularity]struct{}, len(requested))
		for _, k := range requested {
			if _, ok := configured[k]; !ok {
				return nil, fmt.Errorf("%w: %d (supported: %s)", e.ErrUnsupportedGranularity, k, domain.FormatGranularities(en.configured()))
			}
			want[k] = struct{}{}
		}
	}

	active := make([]domain.GranularityConfig, 0, len(en.configs))
	for _, c := range en.configs {
		if want != nil {
			if _, ok := want[c.Clusters]; !ok {
				continue
			}
		}
		if !en.models.Has(c.Clusters) {
			continue
		}
		active = append(active, c)
	}

	return active, nil
}

func (en *Engine) configured() []domain.Granularity {
	out := make([]domain.Granularity, len(en.configs))
	for i, c := range en.configs {
		out[i] = c.Clusters
	}

	return out
}

func validateVector(vec []float64) error {
	if len(vec) == 0 {
		return e.ErrEmptyVector
	}

	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: component %d is %v", e.ErrInvalidVector, i, v)
		}
	}

	return nil
}

// pick возвращает до limit строк кластера. Без rng берутся первые по возрастанию индекса,
// с rng делается равномерная выборка без повторов (частичный Фишер–Йейтс по копии).
// members общий для всех запросов и не изменяется.
func pick(members []int, limit int, rng *rand.Rand) []int {
	n := min(len(members), limit)
	if rng == nil {
		out := make([]int, n)
		copy(out, members[:n])
		return out
	}

	shuffled := make([]int, len(members))
	copy(shuffled, members)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled[:n]
}

func newRand(seed *uint64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	}

	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
