package domain

import (
	"fmt"
	"math"

	"github.com/DRSN-tech/ml-recommender/pkg/e"
)

// ValidateEmbedding проверяет вектор, полученный от сервиса эмбеддингов или из кэша.
// dimension 0 отключает проверку размерности.
func ValidateEmbedding(vec []float64, dimension int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty embedding_list", e.ErrEmbeddingFailed)
	}

	if dimension > 0 && len(vec) != dimension {
		return fmt.Errorf("%w: %w: got %d, expected %d", e.ErrEmbeddingFailed, e.ErrDimensionMismatch, len(vec), dimension)
	}

	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %w", e.ErrEmbeddingFailed, e.ErrInvalidVector)
		}
	}

	return nil
}
