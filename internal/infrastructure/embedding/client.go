package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/DRSN-tech/ml-recommender/internal/metrics"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/jitter"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	breakerName          = "embedding-service"
	breakerMaxFailures   = 5
	breakerOpenTimeout   = 30 * time.Second
	defaultBaseBackoff   = 200 * time.Millisecond
	defaultMaxBackoff    = 5 * time.Second
	maxErrorBodyBytes    = 512
	maxResponseBodyBytes = 4 << 20
	outcomeSuccess       = "success"
	outcomeError         = "error"
	outcomeUnavailable   = "unavailable"
)

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	EmbeddingList []float64 `json:"embedding_list"`
}

// permanentError — ответ сервиса, который бессмысленно повторять (4xx, некорректное тело).
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Client — HTTP-клиент сервиса эмбеддингов текста.
// Каждая попытка ограничена таймаутом, сбои повторяются с экспоненциальной задержкой,
// серия неудачных вызовов размыкает circuit breaker.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	timeout     time.Duration
	budget      time.Duration
	maxRetries  int
	dimension   int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	cb          *gobreaker.CircuitBreaker[[]float64]
	log         logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff задаёт границы задержки между повторами.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseBackoff = base
		c.maxBackoff = maxDelay
	}
}

func NewClient(cfg *cfg.EmbeddingCfg, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		endpoint:    strings.TrimRight(cfg.URL, "/") + "/embedding",
		timeout:     cfg.Timeout,
		budget:      cfg.Budget,
		maxRetries:  max(cfg.MaxRetries, 1),
		dimension:   cfg.Dimension,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}

	metrics.EmbeddingBreakerState.Set(0)
	c.cb = gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		IsSuccessful: func(err error) bool {
			var perm *permanentError
			return err == nil || errors.As(err, &perm) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			metrics.EmbeddingBreakerState.Set(stateToFloat(to))
		},
	})

	return c
}

// Dimension возвращает ожидаемую размерность эмбеддинга (0 означает без проверки).
func (c *Client) Dimension() int {
	return c.dimension
}

// Embed возвращает вектор текста.
// Разомкнутый breaker даёт e.ErrEmbeddingUnavailable, прочие сбои дают e.ErrEmbeddingFailed.
// Все попытки вместе с паузами укладываются в budget.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	const op = "Client.Embed"

	if c.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.budget)
		defer cancel()
	}

	start := time.Now()
	vec, err := c.cb.Execute(func() ([]float64, error) {
		return c.embedWithRetry(ctx, text)
	})

	switch {
	case err == nil:
		metrics.RecordEmbeddingRequest(outcomeSuccess, time.Since(start))
		return vec, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordEmbeddingRequest(outcomeUnavailable, time.Since(start))
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrEmbeddingUnavailable, err))
	default:
		metrics.RecordEmbeddingRequest(outcomeError, time.Since(start))
		if errors.Is(err, e.ErrEmbeddingFailed) {
			return nil, e.Wrap(op, err)
		}
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrEmbeddingFailed, err))
	}
}

func (c *Client) embedWithRetry(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		vec, err := c.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) || ctx.Err() != nil {
			return nil, err
		}

		if attempt == c.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(c.baseBackoff, c.maxBackoff, attempt, jitter.DefaultJitter)
		c.log.Warnf("embedding request failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.maxRetries, lastErr)
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(embedRequest{Input: text})
	if err != nil {
		return nil, &permanentError{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &permanentError{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr := fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{err: statusErr}
		}
		return nil, statusErr
	}

	var res embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodyBytes)).Decode(&res); err != nil {
		return nil, &permanentError{err: fmt.Errorf("decode embedding response: %w", err)}
	}

	if err := c.validate(res.EmbeddingList); err != nil {
		return nil, &permanentError{err: err}
	}

	return res.EmbeddingList, nil
}

func (c *Client) validate(vec []float64) error {
	return domain.ValidateEmbedding(vec, c.dimension)
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
