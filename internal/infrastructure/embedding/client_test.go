package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries, dim int, timeout time.Duration) *Client {
	return NewClient(&cfg.EmbeddingCfg{
		URL:        url,
		Timeout:    timeout,
		MaxRetries: retries,
		Dimension:  dim,
	}, logger.NewNopLogger(), WithBackoff(time.Millisecond, 5*time.Millisecond))
}

func TestEmbedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embedding", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "wireless headphones", req.Input)

		_, _ = w.Write([]byte(`{"embedding_list":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL+"/", 3, 3, time.Second)
	vec, err := c.Embed(context.Background(), "wireless headphones")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model is warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embedding_list":[1,2]}`))
	}))
	defer srv.Close()

	vec, err := newTestClient(srv.URL, 3, 0, time.Second).Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vec)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3, 0, time.Second).Embed(context.Background(), "text")
	assert.ErrorIs(t, err, e.ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "bad input")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2, 0, time.Second).Embed(context.Background(), "text")
	assert.ErrorIs(t, err, e.ErrEmbeddingFailed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedValidatesResponse(t *testing.T) {
	cases := map[string]struct {
		body string
		want error
	}{
		"dimension":   {body: `{"embedding_list":[1,2]}`, want: e.ErrDimensionMismatch},
		"empty":       {body: `{"embedding_list":[]}`, want: e.ErrEmbeddingFailed},
		"not json":    {body: `<html>`, want: e.ErrEmbeddingFailed},
		"missing key": {body: `{"vector":[1,2,3]}`, want: e.ErrEmbeddingFailed},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, 3, 3, time.Second).Embed(context.Background(), "text")
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, e.ErrEmbeddingFailed)
		})
	}
}

func TestEmbedAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := newTestClient(srv.URL, 1, 0, 50*time.Millisecond).Embed(context.Background(), "text")
	assert.ErrorIs(t, err, e.ErrEmbeddingFailed)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestEmbedBudgetCapsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		http.Error(w, "slow", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(&cfg.EmbeddingCfg{
		URL:        srv.URL,
		Timeout:    5 * time.Second,
		Budget:     100 * time.Millisecond,
		MaxRetries: 3,
	}, logger.NewNopLogger(), WithBackoff(time.Millisecond, 5*time.Millisecond))

	start := time.Now()
	_, err := c.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, e.ErrEmbeddingFailed)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1, 0, time.Second)
	for range breakerMaxFailures {
		_, err := c.Embed(context.Background(), "text")
		assert.ErrorIs(t, err, e.ErrEmbeddingFailed)
	}

	_, err := c.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, e.ErrEmbeddingUnavailable)
	assert.Equal(t, int32(breakerMaxFailures), calls.Load())
}

func TestEmbedClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1, 0, time.Second)
	for range breakerMaxFailures + 2 {
		_, err := c.Embed(context.Background(), "text")
		assert.ErrorIs(t, err, e.ErrEmbeddingFailed)
		assert.NotErrorIs(t, err, e.ErrEmbeddingUnavailable)
	}
}
