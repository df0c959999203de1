package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
)

const (
	categoryKeyColumn = "category_id"
	categoryIDColumn  = "id"
	leftSuffix        = "_x"
	rightSuffix       = "_y"
)

// table — разобранный CSV-файл.
type table struct {
	name    string
	header  []string
	records [][]string
}

// Load читает части каталога и справочник категорий и строит Store.
// Любая ошибка чтения или несоответствие схемы фатальны для запуска.
func Load(ctx context.Context, src Source, parts []string, categoriesFile string, log logger.Logger) (*Store, error) {
	const op = "catalog.Load"

	if len(parts) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: no catalog parts configured", e.ErrCatalogSchemaMismatch))
	}

	var products *table
	for _, part := range parts {
		t, err := readTable(ctx, src, part)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		if products == nil {
			products = t
			continue
		}

		if err := appendTable(products, t); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	if len(products.records) == 0 {
		return nil, e.Wrap(op, e.ErrCatalogEmpty)
	}

	categories, err := readTable(ctx, src, categoriesFile)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	store, err := leftJoinCategories(products, categories, log)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	log.Infof("catalog loaded: %d rows, %d columns from %d parts", store.RowCount(), len(store.columns), len(parts))
	return store, nil
}

func readTable(ctx context.Context, src Source, name string) (*table, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s has no header", e.ErrCatalogSchemaMismatch, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	header = normalizeHeader(header)
	if dup := firstDuplicate(header); dup != "" {
		return nil, fmt.Errorf("%w: %s has duplicate column %q", e.ErrCatalogSchemaMismatch, name, dup)
	}

	var records [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		records = append(records, rec)
	}

	return &table{name: name, header: header, records: records}, nil
}

// appendTable дописывает строки next в dst, приводя порядок колонок next к порядку dst.
func appendTable(dst, next *table) error {
	if len(dst.header) != len(next.header) {
		return fmt.Errorf("%w: %s has %d columns, %s has %d",
			e.ErrCatalogSchemaMismatch, next.name, len(next.header), dst.name, len(dst.header))
	}

	positions := make([]int, len(dst.header))
	for i, col := range dst.header {
		pos := slices.Index(next.header, col)
		if pos < 0 {
			return fmt.Errorf("%w: %s has no column %q", e.ErrCatalogSchemaMismatch, next.name, col)
		}
		positions[i] = pos
	}

	for _, rec := range next.records {
		reordered := make([]string, len(positions))
		for i, pos := range positions {
			reordered[i] = rec[pos]
		}
		dst.records = append(dst.records, reordered)
	}

	return nil
}

// leftJoinCategories присоединяет колонки справочника к каждой строке товаров по category_id.
// Количество строк не меняется: при дублирующихся id в справочнике используется первое вхождение.
func leftJoinCategories(products, categories *table, log logger.Logger) (*Store, error) {
	keyPos := slices.Index(products.header, categoryKeyColumn)
	if keyPos < 0 {
		return nil, fmt.Errorf("%w: products have no %q column", e.ErrCatalogSchemaMismatch, categoryKeyColumn)
	}

	catHeader := slices.Clone(categories.header)
	idPos := slices.Index(catHeader, categoryIDColumn)
	if idPos < 0 {
		return nil, fmt.Errorf("%w: %s has no %q column", e.ErrCatalogSchemaMismatch, categories.name, categoryIDColumn)
	}
	catHeader[idPos] = categoryKeyColumn

	productColumns := slices.Clone(products.header)
	var (
		joinedColumns []string
		catPositions  []int
	)
	for i, col := range catHeader {
		if i == idPos {
			continue
		}

		if pos := slices.Index(productColumns, col); pos >= 0 {
			productColumns[pos] = col + leftSuffix
			col += rightSuffix
		}
		joinedColumns = append(joinedColumns, col)
		catPositions = append(catPositions, i)
	}

	lookup := make(map[string][]domain.Value, len(categories.records))
	duplicates := 0
	for _, rec := range categories.records {
		key := normalizeKey(rec[idPos])
		if _, ok := lookup[key]; ok {
			duplicates++
			continue
		}

		values := make([]domain.Value, len(catPositions))
		for i, pos := range catPositions {
			values[i] = domain.ParseValue(rec[pos])
		}
		lookup[key] = values
	}
	if duplicates > 0 {
		log.Warnf("categories file %s has %d duplicate ids, first occurrence is used", categories.name, duplicates)
	}

	columns := append(productColumns, joinedColumns...)
	rows := make([][]domain.Value, len(products.records))
	unmatched := 0
	for i, rec := range products.records {
		row := make([]domain.Value, 0, len(columns))
		for _, cell := range rec {
			row = append(row, domain.ParseValue(cell))
		}

		if values, ok := lookup[normalizeKey(rec[keyPos])]; ok {
			row = append(row, values...)
		} else {
			unmatched++
			for range joinedColumns {
				row = append(row, domain.NullValue())
			}
		}
		rows[i] = row
	}
	if unmatched > 0 {
		log.Warnf("%d catalog rows have no matching category", unmatched)
	}

	return NewStore(columns, rows)
}

// normalizeKey приводит ключ соединения к каноническому виду: "7", " 7 " и "7.0" совпадают.
func normalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}

	return s
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}

	return out
}

func firstDuplicate(header []string) string {
	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		if _, ok := seen[h]; ok {
			return h
		}
		seen[h] = struct{}{}
	}

	return ""
}
