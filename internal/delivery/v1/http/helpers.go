package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const maxRequestBodySize = 1 << 20

var validate = validator.New()

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// badRequestErrors — ошибки валидации запроса, сообщение которых отдаётся клиенту.
var badRequestErrors = []error{
	e.ErrEmptyVector,
	e.ErrInvalidVector,
	e.ErrDimensionMismatch,
	e.ErrUnsupportedGranularity,
	e.ErrTextRequired,
	e.ErrMalformedBody,
	e.ErrStatusBadRequest,
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, e.ErrEmbeddingUnavailable.Error()
	case errors.Is(err, e.ErrEmbeddingFailed):
		return http.StatusBadGateway, e.ErrEmbeddingFailed.Error()
	case errors.Is(err, e.ErrServiceNotReady):
		return http.StatusServiceUnavailable, e.ErrServiceNotReady.Error()
	case errors.Is(err, e.ErrTooManyRequests):
		return http.StatusTooManyRequests, e.ErrTooManyRequests.Error()
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, describe(err, target)
		}
	}

	return http.StatusInternalServerError, e.ErrInternalServerError.Error()
}

// describe отрезает от сообщения префиксы мест вызова, оставляя текст начиная с sentinel-ошибки.
func describe(err, target error) string {
	msg := err.Error()
	if idx := strings.Index(msg, target.Error()); idx >= 0 {
		return msg[idx:]
	}

	return target.Error()
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, msg))
}

// WriteSuccess сериализует ответ до записи статуса. Ошибка кодирования отдаётся как 500.
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(NewErrorResponse(status, e.ErrInternalServerError.Error()))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// decodeJSON читает тело запроса в dst и проверяет его теги validate.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", e.ErrMalformedBody, err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", e.ErrMalformedBody, err)
	}

	return nil
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed on %q", e.ErrMalformedBody, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", e.ErrMalformedBody, err)
	}

	return nil
}

// parseGranularities разбирает повторяющийся параметр granularity (допускаются и списки через запятую).
func parseGranularities(values []string) ([]domain.Granularity, error) {
	var out []domain.Granularity
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			k, err := strconv.Atoi(part)
			if err != nil || k <= 0 {
				return nil, fmt.Errorf("%w: invalid granularity %q", e.ErrStatusBadRequest, part)
			}
			out = append(out, domain.Granularity(k))
		}
	}

	return out, nil
}

func toGranularities(ks []int) []domain.Granularity {
	if len(ks) == 0 {
		return nil
	}

	out := make([]domain.Granularity, len(ks))
	for i, k := range ks {
		out[i] = domain.Granularity(k)
	}

	return out
}

func parseOptionalBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", e.ErrStatusBadRequest, key, v)
	}

	return &b, nil
}

func parseOptionalUint(r *http.Request, key string) (*uint64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}

	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", e.ErrStatusBadRequest, key, v)
	}

	return &u, nil
}
