package observability

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/metrics"
)

// DefaultPrometheusPath é a rota padrão do scrape.
const DefaultPrometheusPath = "/metrics"

// NoopProvider é um placeholder para quando métricas estão desabilitadas.
type NoopProvider struct{}

func (n *NoopProvider) Count(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Gauge(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Histogram(name string, value float64, tags []string) error { return nil }

// DatadogProvider adapta a lib oficial do Datadog para nossa interface.
type DatadogProvider struct {
	client statsd.ClientInterface
}

func (d *DatadogProvider) Count(name string, value float64, tags []string) error {
	return d.client.Count(name, int64(value), tags, 1)
}

func (d *DatadogProvider) Gauge(name string, value float64, tags []string) error {
	return d.client.Gauge(name, value, tags, 1)
}

func (d *DatadogProvider) Histogram(name string, value float64, tags []string) error {
	return d.client.Histogram(name, value, tags, 1)
}

// Close descarrega o buffer do statsd.
func (d *DatadogProvider) Close() error {
	return d.client.Close()
}

// MultiProvider replica cada métrica para todos os providers.
type MultiProvider []metrics.Provider

func (m MultiProvider) Count(name string, value float64, tags []string) error {
	return m.each(func(p metrics.Provider) error { return p.Count(name, value, tags) })
}

func (m MultiProvider) Gauge(name string, value float64, tags []string) error {
	return m.each(func(p metrics.Provider) error { return p.Gauge(name, value, tags) })
}

func (m MultiProvider) Histogram(name string, value float64, tags []string) error {
	return m.each(func(p metrics.Provider) error { return p.Histogram(name, value, tags) })
}

// Close fecha os providers que mantêm conexões abertas.
func (m MultiProvider) Close() error {
	return m.each(func(p metrics.Provider) error { return Close(p) })
}

func (m MultiProvider) each(fn func(metrics.Provider) error) error {
	var errs []error
	for _, p := range m {
		if err := fn(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close fecha o provider se ele implementar io.Closer.
func Close(p metrics.Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Exposer é implementado por providers que publicam as métricas via HTTP (pull).
type Exposer interface {
	Handler() http.Handler
}

// MetricsHandler devolve o handler HTTP do provider, se houver.
func MetricsHandler(p metrics.Provider) (http.Handler, bool) {
	switch v := p.(type) {
	case Exposer:
		return v.Handler(), true
	case MultiProvider:
		for _, inner := range v {
			if h, ok := MetricsHandler(inner); ok {
				return h, true
			}
		}
	}
	return nil, false
}

// SetupMetrics inicializa os providers habilitados no YAML.
func SetupMetrics(cfg config.MetricsConf) (metrics.Provider, error) {
	var providers MultiProvider

	if cfg.Datadog.Enabled {
		// Configurações do cliente StatsD
		opts := []statsd.Option{
			statsd.WithNamespace(cfg.Datadog.Namespace),
		}

		client, err := statsd.New(cfg.Datadog.Addr, opts...)
		if err != nil {
			return nil, fmt.Errorf("falha ao conectar no datadog statsd: %w", err)
		}
		providers = append(providers, &DatadogProvider{client: client})
	}

	if cfg.Prometheus.Enabled {
		providers = append(providers, NewPrometheusProvider(cfg.Prometheus.Namespace))
	}

	switch len(providers) {
	case 0:
		return &NoopProvider{}, nil
	case 1:
		return providers[0], nil
	default:
		return providers, nil
	}
}
