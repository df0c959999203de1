package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
)

// Source открывает артефакт по имени.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Store — загруженный каталог. После создания не изменяется и безопасен для конкурентного чтения.
type Store struct {
	columns []string
	rows    [][]domain.Value
}

// NewStore создаёт каталог из готовых строк. Каждая строка должна содержать len(columns) значений.
func NewStore(columns []string, rows [][]domain.Value) (*Store, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", e.ErrCatalogSchemaMismatch, i, len(row), len(columns))
		}
	}

	return &Store{
		columns: columns,
		rows:    rows,
	}, nil
}

// RowCount возвращает количество строк каталога.
func (s *Store) RowCount() int {
	return len(s.rows)
}

// Columns возвращает колонки каталога в порядке сериализации.
func (s *Store) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Row возвращает запись по индексу строки.
func (s *Store) Row(i int) (domain.Product, error) {
	if i < 0 || i >= len(s.rows) {
		return domain.Product{}, fmt.Errorf("%w: %d not in [0, %d)", e.ErrRowOutOfRange, i, len(s.rows))
	}

	return domain.NewProduct(i, s.columns, s.rows[i]), nil
}

// GetRows возвращает записи в порядке переданных индексов.
func (s *Store) GetRows(indices []int) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(indices))
	for _, i := range indices {
		p, err := s.Row(i)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, nil
}
