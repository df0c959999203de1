package fs

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/jimlawless/whereami"
)

// ArtifactRepo читает артефакты (части каталога, категории, модели) из локального каталога.
type ArtifactRepo struct {
	dir string
}

func NewArtifactRepo(dir string) *ArtifactRepo {
	return &ArtifactRepo{dir: dir}
}

// Open открывает артефакт по имени. Отсутствующий файл возвращает e.ErrArtifactNotFound.
func (r *ArtifactRepo) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	f, err := os.Open(filepath.Join(r.dir, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, e.Wrap(name, e.ErrArtifactNotFound)
		}

		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return f, nil
}

// Describe возвращает человекочитаемое расположение артефакта для логов.
func (r *ArtifactRepo) Describe(name string) string {
	return filepath.Join(r.dir, name)
}
