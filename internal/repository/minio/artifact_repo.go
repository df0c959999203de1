package minio

import (
	"context"
	"io"
	"path"

	"github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

const noSuchKeyCode = "NoSuchKey"

// ArtifactRepo читает артефакты каталога и моделей из бакета MinIO.
type ArtifactRepo struct {
	mc     *minio.Client
	cfg    *cfg.MinIOCfg
	prefix string
}

func NewArtifactRepo(mc *minio.Client, cfg *cfg.MinIOCfg, prefix string) *ArtifactRepo {
	return &ArtifactRepo{
		mc:     mc,
		cfg:    cfg,
		prefix: prefix,
	}
}

// Open открывает объект на чтение. Отсутствующий объект возвращает e.ErrArtifactNotFound.
func (a *ArtifactRepo) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := a.objectKey(name)

	obj, err := a.mc.GetObject(ctx, a.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// GetObject ленивый: ошибка отсутствия объекта приходит только на Stat/Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == noSuchKeyCode {
			return nil, e.Wrap(key, e.ErrArtifactNotFound)
		}

		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return obj, nil
}

// Describe возвращает расположение объекта для логов.
func (a *ArtifactRepo) Describe(name string) string {
	return "s3://" + path.Join(a.cfg.BucketName, a.objectKey(name))
}

func (a *ArtifactRepo) objectKey(name string) string {
	if a.prefix == "" || a.prefix == "." {
		return name
	}

	return path.Join(a.prefix, name)
}
