package catalog

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource отдаёт артефакты из памяти.
type memSource map[string]string

func (m memSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	content, ok := m[name]
	if !ok {
		return nil, e.Wrap(name, e.ErrArtifactNotFound)
	}

	return io.NopCloser(strings.NewReader(content)), nil
}

const categoriesCSV = `id,category_name
1,Headphones
2,Laptops
2,Duplicate Laptops
`

func TestLoadConcatenatesPartsAndJoinsCategories(t *testing.T) {
	src := memSource{
		"part_0.csv": "asin,title,price,category_id,isBestSeller\nA1,Earbuds,19.99,1,False\nA2,Notebook,999,2,True\n",
		// колонки в другом порядке приводятся к порядку первой части
		"part_1.csv":     "title,asin,category_id,price,isBestSeller\nMystery,A3,99,5.5,False\n",
		"categories.csv": categoriesCSV,
	}

	store, err := Load(context.Background(), src, []string{"part_0.csv", "part_1.csv"}, "categories.csv", logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 3, store.RowCount())
	assert.Equal(t, []string{"asin", "title", "price", "category_id", "isBestSeller", "category_name"}, store.Columns())

	rows, err := store.GetRows([]int{2, 0, 1})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 2, rows[0].Row)
	title, _ := rows[0].Get("title")
	assert.Equal(t, "Mystery", title.String())
	category, _ := rows[0].Get("category_name")
	assert.True(t, category.IsNull(), "unmatched category must be null")

	category, _ = rows[1].Get("category_name")
	assert.Equal(t, "Headphones", category.String())

	category, _ = rows[2].Get("category_name")
	assert.Equal(t, "Laptops", category.String(), "first duplicate id wins")
}

func TestLoadSerializesFlatRecord(t *testing.T) {
	src := memSource{
		"p.csv":          "title,price,category_id\n\"Cable, USB-C\",7.50,1\n",
		"categories.csv": categoriesCSV,
	}

	store, err := Load(context.Background(), src, []string{"p.csv"}, "categories.csv", logger.NewNopLogger())
	require.NoError(t, err)

	p, err := store.Row(0)
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Cable, USB-C","price":7.5,"category_id":1,"category_name":"Headphones"}`, string(data))
}

func TestLoadSuffixesCollidingColumns(t *testing.T) {
	src := memSource{
		"p.csv":          "name,category_id\nMouse,1\n",
		"categories.csv": "id,name\n1,Peripherals\n",
	}

	store, err := Load(context.Background(), src, []string{"p.csv"}, "categories.csv", logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"name_x", "category_id", "name_y"}, store.Columns())
}

func TestLoadJoinKeyNormalization(t *testing.T) {
	src := memSource{
		"p.csv":          "title,category_id\nA, 1 \nB,2.0\n",
		"categories.csv": categoriesCSV,
	}

	store, err := Load(context.Background(), src, []string{"p.csv"}, "categories.csv", logger.NewNopLogger())
	require.NoError(t, err)

	for i, want := range []string{"Headphones", "Laptops"} {
		p, err := store.Row(i)
		require.NoError(t, err)
		v, _ := p.Get("category_name")
		assert.Equal(t, want, v.String())
	}
}

func TestLoadFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     memSource
		parts   []string
		wantErr error
	}{
		{
			name:    "missing part",
			src:     memSource{"p0.csv": "title,category_id\nA,1\n", "categories.csv": categoriesCSV},
			parts:   []string{"p0.csv", "p1.csv"},
			wantErr: e.ErrArtifactNotFound,
		},
		{
			name:    "missing categories",
			src:     memSource{"p0.csv": "title,category_id\nA,1\n"},
			parts:   []string{"p0.csv"},
			wantErr: e.ErrArtifactNotFound,
		},
		{
			name: "parts disagree on columns",
			src: memSource{
				"p0.csv":         "title,category_id\nA,1\n",
				"p1.csv":         "title,category\nB,1\n",
				"categories.csv": categoriesCSV,
			},
			parts:   []string{"p0.csv", "p1.csv"},
			wantErr: e.ErrCatalogSchemaMismatch,
		},
		{
			name:    "no category_id",
			src:     memSource{"p0.csv": "title\nA\n", "categories.csv": categoriesCSV},
			parts:   []string{"p0.csv"},
			wantErr: e.ErrCatalogSchemaMismatch,
		},
		{
			name:    "categories without id",
			src:     memSource{"p0.csv": "title,category_id\nA,1\n", "categories.csv": "category_name\nX\n"},
			parts:   []string{"p0.csv"},
			wantErr: e.ErrCatalogSchemaMismatch,
		},
		{
			name:    "empty catalog",
			src:     memSource{"p0.csv": "title,category_id\n", "categories.csv": categoriesCSV},
			parts:   []string{"p0.csv"},
			wantErr: e.ErrCatalogEmpty,
		},
		{
			name:    "no header",
			src:     memSource{"p0.csv": "", "categories.csv": categoriesCSV},
			parts:   []string{"p0.csv"},
			wantErr: e.ErrCatalogSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.src, tt.parts, "categories.csv", logger.NewNopLogger())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadRejectsRaggedRows(t *testing.T) {
	src := memSource{
		"p0.csv":         "title,category_id\nA,1,extra\n",
		"categories.csv": categoriesCSV,
	}

	_, err := Load(context.Background(), src, []string{"p0.csv"}, "categories.csv", logger.NewNopLogger())
	require.Error(t, err)
}

func TestStoreRowOutOfRange(t *testing.T) {
	store, err := NewStore([]string{"title"}, [][]domain.Value{{domain.StringValue("A")}})
	require.NoError(t, err)

	_, err = store.Row(1)
	assert.ErrorIs(t, err, e.ErrRowOutOfRange)

	_, err = store.GetRows([]int{0, -1})
	assert.ErrorIs(t, err, e.ErrRowOutOfRange)
}

func TestNewStoreValidatesWidth(t *testing.T) {
	_, err := NewStore([]string{"a", "b"}, [][]domain.Value{{domain.NullValue()}})
	assert.ErrorIs(t, err, e.ErrCatalogSchemaMismatch)
}
