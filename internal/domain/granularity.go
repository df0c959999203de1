package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Granularity — количество кластеров K, задающее одно разрешение группировки товаров.
type Granularity int

func (g Granularity) String() string {
	return strconv.Itoa(int(g))
}

// Valid сообщает, является ли K допустимым количеством кластеров.
func (g Granularity) Valid() bool {
	return g > 0
}

// GranularityConfig связывает гранулярность с максимальным размером выдачи R_K.
type GranularityConfig struct {
	Clusters   Granularity
	ResultSize int
}

func NewGranularityConfig(clusters Granularity, resultSize int) GranularityConfig {
	return GranularityConfig{
		Clusters:   clusters,
		ResultSize: resultSize,
	}
}

// DefaultGranularities возвращает стандартный набор гранулярностей: 150→10, 1000→15, 6500→75.
func DefaultGranularities() []GranularityConfig {
	return []GranularityConfig{
		NewGranularityConfig(150, 10),
		NewGranularityConfig(1000, 15),
		NewGranularityConfig(6500, 75),
	}
}

// FormatGranularities форматирует список гранулярностей в виде "150, 1000, 6500".
func FormatGranularities(gs []Granularity) string {
	sorted := slices.Clone(gs)
	slices.Sort(sorted)

	parts := make([]string, len(sorted))
	for i, g := range sorted {
		parts[i] = g.String()
	}

	return strings.Join(parts, ", ")
}

// ValidateGranularityConfigs проверяет, что K и R положительны и K не повторяются.
func ValidateGranularityConfigs(cfgs []GranularityConfig) error {
	if len(cfgs) == 0 {
		return fmt.Errorf("at least one granularity is required")
	}

	seen := make(map[Granularity]struct{}, len(cfgs))
	for _, c := range cfgs {
		if !c.Clusters.Valid() {
			return fmt.Errorf("cluster count must be positive, got %d", c.Clusters)
		}
		if c.ResultSize <= 0 {
			return fmt.Errorf("result size for %d clusters must be positive, got %d", c.Clusters, c.ResultSize)
		}
		if _, ok := seen[c.Clusters]; ok {
			return fmt.Errorf("duplicate granularity %d", c.Clusters)
		}
		seen[c.Clusters] = struct{}{}
	}

	return nil
}
