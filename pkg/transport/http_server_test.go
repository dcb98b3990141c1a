package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservabilityMiddleware(t *testing.T) {
	var seenID, seenHeader string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = CorrelationID(r.Context())
		seenHeader = r.Header.Get(HeaderCorrelationID)
		w.WriteHeader(http.StatusCreated)
	})
	h := ObservabilityMiddleware(zerolog.Nop(), next)

	t.Run("Gera correlation id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NotEmpty(t, seenID)
		assert.Equal(t, seenID, seenHeader, "o id gerado segue para os targets")
		assert.Equal(t, seenID, rec.Header().Get(HeaderCorrelationID))
		assert.NotEmpty(t, rec.Header().Get(HeaderLatency))
	})

	t.Run("Reaproveita correlation id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderCorrelationID, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seenID)
		assert.Equal(t, "abc-123", rec.Header().Get(HeaderCorrelationID))
	})

	assert.Empty(t, CorrelationID(context.Background()))
}

func TestNewHTTPHandler(t *testing.T) {
	h := NewHTTPHandler(newTestEngine(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://localhost/_ah/api/items/v1/items/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://localhost/_ah/spi/BackendService.getApiConfigs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/outra", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartHTTPServer_GracefulShutdown(t *testing.T) {
	svc := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- startHTTPServer(ctx, svc, "127.0.0.1:0", ServerOptions{ShutdownTimeout: time.Second}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("servidor não encerrou")
	}
}
