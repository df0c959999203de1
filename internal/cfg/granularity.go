package cfg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// granularityFile — структура YAML-файла RECOMMEND_CONFIG_PATH:
//
//	granularities:
//	  - clusters: 150
//	    result_size: 10
type granularityFile struct {
	Granularities []granularityEntry `koanf:"granularities"`
}

type granularityEntry struct {
	Clusters   int `koanf:"clusters"`
	ResultSize int `koanf:"result_size"`
}

func defaultGranularityFile() granularityFile {
	defaults := domain.DefaultGranularities()
	entries := make([]granularityEntry, len(defaults))
	for i, g := range defaults {
		entries[i] = granularityEntry{Clusters: int(g.Clusters), ResultSize: g.ResultSize}
	}

	return granularityFile{Granularities: entries}
}

// loadGranularities собирает набор гранулярностей: значения по умолчанию, затем YAML-файл (если задан),
// затем переменная GRANULARITIES (если задана). Порядок в итоговом списке задаёт порядок выдачи.
func loadGranularities(path string, envValue string) ([]domain.GranularityConfig, error) {
	const op = "cfg.loadGranularities"

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultGranularityFile(), "koanf"), nil); err != nil {
		return nil, e.Wrap(op, err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, e.Wrap(op, fmt.Errorf("read %s: %w", path, err))
		}
	}

	var f granularityFile
	if err := k.Unmarshal("", &f); err != nil {
		return nil, e.Wrap(op, err)
	}

	result := make([]domain.GranularityConfig, 0, len(f.Granularities))
	for _, g := range f.Granularities {
		result = append(result, domain.NewGranularityConfig(domain.Granularity(g.Clusters), g.ResultSize))
	}

	if strings.TrimSpace(envValue) != "" {
		parsed, err := ParseGranularities(envValue)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		result = parsed
	}

	if err := domain.ValidateGranularityConfigs(result); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrInvalidGranularity, err))
	}

	return result, nil
}

// ParseGranularities разбирает строку вида "150:10,1000:15,6500:75".
func ParseGranularities(s string) ([]domain.GranularityConfig, error) {
	items := splitList(s)
	result := make([]domain.GranularityConfig, 0, len(items))

	for _, item := range items {
		k, r, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q, expected clusters:result_size", e.ErrInvalidGranularity, item)
		}

		clusters, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("%w: cluster count %q", e.ErrInvalidGranularity, k)
		}

		size, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("%w: result size %q", e.ErrInvalidGranularity, r)
		}

		result = append(result, domain.NewGranularityConfig(domain.Granularity(clusters), size))
	}

	return result, nil
}
