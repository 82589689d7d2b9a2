package extraction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ExtractionConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: timeout,
	}, zap.NewNop())
}

func TestExtractText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"text":"01/10/2025 EFT Payment 450.00"}`))
	}, time.Second)

	text, err := client.ExtractText(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "01/10/2025 EFT Payment 450.00", text)
}

func TestExtractTextNotConfigured(t *testing.T) {
	client := NewClient(config.ExtractionConfig{Timeout: time.Second}, zap.NewNop())

	_, err := client.ExtractText(context.Background(), []byte("data"))
	require.Error(t, err)
	assert.True(t, apperr.IsBusiness(err, apperr.CodeServiceNotConfigured))
}

func TestExtractTextTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, 20*time.Millisecond)

	_, err := client.ExtractText(context.Background(), []byte("data"))
	require.Error(t, err)
	require.True(t, apperr.IsTransient(err))
	var te *apperr.TransientError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout)
}

func TestExtractTextServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}, time.Second)

	_, err := client.ExtractText(context.Background(), []byte("data"))
	require.Error(t, err)
	require.True(t, apperr.IsTransient(err))
	var te *apperr.TransientError
	require.ErrorAs(t, err, &te)
	assert.False(t, te.Timeout)
}

func TestExtractTextEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":""}`))
	}, time.Second)

	_, err := client.ExtractText(context.Background(), []byte("data"))
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}, time.Second)

	for i := 0; i < 5; i++ {
		_, err := client.ExtractText(context.Background(), []byte("data"))
		require.Error(t, err)
	}
	assert.Equal(t, 5, calls)

	// Breaker is open now; the server must not be hit again.
	_, err := client.ExtractText(context.Background(), []byte("data"))
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
	assert.Equal(t, 5, calls)
}
