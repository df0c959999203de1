package e

import "fmt"

var (
	// Ошибки запуска (startup-fatal)
	ErrArtifactNotFound      = fmt.Errorf("artifact not found")
	ErrCatalogSchemaMismatch = fmt.Errorf("catalog schema mismatch")
	ErrCatalogEmpty          = fmt.Errorf("catalog is empty")
	ErrModelCorrupt          = fmt.Errorf("cluster model artifact is corrupt")
	ErrLabelsMismatch        = fmt.Errorf("cluster labels length does not match catalog row count")
	ErrInvalidGranularity    = fmt.Errorf("invalid granularity config")
	ErrIncorrectEnvVariable  = fmt.Errorf("incorrect environment variable")

	// Внутренние ошибки каталога
	ErrRowOutOfRange = fmt.Errorf("catalog row index out of range")

	// Ошибки внешнего сервиса эмбеддингов
	ErrEmbeddingUnavailable = fmt.Errorf("embedding service unavailable")
	ErrEmbeddingFailed      = fmt.Errorf("embedding service request failed")

	// 400 Bad Request
	ErrStatusBadRequest       = fmt.Errorf("bad request")
	ErrMalformedBody          = fmt.Errorf("malformed request body")
	ErrTextRequired           = fmt.Errorf("input text is required")
	ErrEmptyVector            = fmt.Errorf("query vector is empty")
	ErrInvalidVector          = fmt.Errorf("query vector contains non-finite values")
	ErrDimensionMismatch      = fmt.Errorf("query vector dimension mismatch")
	ErrUnsupportedGranularity = fmt.Errorf("unsupported granularity")

	// 429 / 500 / 503
	ErrTooManyRequests     = fmt.Errorf("too many requests")
	ErrInternalServerError = fmt.Errorf("internal server error")
	ErrServiceNotReady     = fmt.Errorf("service is not ready")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
