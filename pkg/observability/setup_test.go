package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMetrics(t *testing.T) {
	t.Run("Disabled returns Noop", func(t *testing.T) {
		provider, err := SetupMetrics(config.MetricsConf{})
		require.NoError(t, err)
		assert.IsType(t, &NoopProvider{}, provider)

		_, ok := MetricsHandler(provider)
		assert.False(t, ok)
	})

	t.Run("Enabled returns Datadog", func(t *testing.T) {
		provider, err := SetupMetrics(config.MetricsConf{
			Datadog: config.DatadogConf{Enabled: true, Addr: "localhost:8125"},
		})
		// statsd usa UDP: a criação do client não exige o agente rodando
		require.NoError(t, err)
		assert.IsType(t, &DatadogProvider{}, provider)
	})

	t.Run("Prometheus exposes handler", func(t *testing.T) {
		provider, err := SetupMetrics(config.MetricsConf{
			Prometheus: config.PrometheusConf{Enabled: true, Namespace: "endpoints"},
		})
		require.NoError(t, err)
		assert.IsType(t, &PrometheusProvider{}, provider)

		_, ok := MetricsHandler(provider)
		assert.True(t, ok)
	})

	t.Run("Both returns Multi", func(t *testing.T) {
		provider, err := SetupMetrics(config.MetricsConf{
			Datadog:    config.DatadogConf{Enabled: true, Addr: "localhost:8125"},
			Prometheus: config.PrometheusConf{Enabled: true},
		})
		require.NoError(t, err)
		multi, ok := provider.(MultiProvider)
		require.True(t, ok)
		assert.Len(t, multi, 2)

		_, ok = MetricsHandler(provider)
		assert.True(t, ok)
	})
}

type failingProvider struct{ NoopProvider }

func (failingProvider) Count(string, float64, []string) error { return errors.New("boom") }

func TestMultiProvider_JoinsErrors(t *testing.T) {
	multi := MultiProvider{&NoopProvider{}, &failingProvider{}}
	assert.ErrorContains(t, multi.Count("x", 1, nil), "boom")
	assert.NoError(t, multi.Gauge("x", 1, nil))
}

func TestPrometheusProvider(t *testing.T) {
	p := NewPrometheusProvider("fe")
	tags := []string{"status:200", "api:items"}

	require.NoError(t, p.Count("endpoints.request.count", 1, tags))
	require.NoError(t, p.Count("endpoints.request.count", 2, []string{"api:items", "status:200"}))
	require.NoError(t, p.Histogram("endpoints.request.latency_ms", 12, tags))
	require.NoError(t, p.Gauge("endpoints.apis.registered", 3, nil))

	// Labels diferentes para a mesma métrica são rejeitados
	assert.Error(t, p.Count("endpoints.request.count", 1, []string{"api:items"}))
	assert.Error(t, p.Count("endpoints.request.count", -1, tags))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	assert.Contains(t, out, `fe_endpoints_request_count_total{api="items",status="200"} 3`)
	assert.Contains(t, out, `fe_endpoints_request_latency_ms_count{api="items",status="200"} 1`)
	assert.Contains(t, out, `fe_endpoints_apis_registered 3`)
}

func TestClose(t *testing.T) {
	dd := &DatadogProvider{client: &statsd.NoOpClient{}}
	require.NoError(t, dd.Count("endpoints.request.count", 1, []string{"api:items"}))

	assert.NoError(t, Close(MultiProvider{dd, &NoopProvider{}}))
	assert.NoError(t, Close(&NoopProvider{}))
}
