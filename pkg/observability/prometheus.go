package observability

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var invalidMetricChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// latencyBuckets em milissegundos.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// PrometheusProvider converte as métricas no formato statsd (nome com pontos,
// tags "chave:valor") em coletores Prometheus, criados sob demanda num
// registry próprio.
//
// O conjunto de labels de uma métrica é fixado na primeira emissão.
type PrometheusProvider struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// NewPrometheusProvider cria o provider com um registry dedicado.
func NewPrometheusProvider(namespace string) *PrometheusProvider {
	return &PrometheusProvider{
		namespace:  sanitizeName(namespace),
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Registry expõe o registry (útil para coletores extras e testes).
func (p *PrometheusProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Handler publica o registry no formato de exposição do Prometheus.
func (p *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusProvider) Count(name string, value float64, tags []string) error {
	if value < 0 {
		return fmt.Errorf("contador '%s' não aceita valor negativo", name)
	}
	names, values := splitTags(tags)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkLabels(name, names); err != nil {
		return err
	}
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      sanitizeName(name) + "_total",
			Help:      name,
		}, names)
		if err := p.registry.Register(vec); err != nil {
			return fmt.Errorf("falha ao registrar contador '%s': %w", name, err)
		}
		p.counters[name] = vec
	}
	vec.WithLabelValues(values...).Add(value)
	return nil
}

func (p *PrometheusProvider) Gauge(name string, value float64, tags []string) error {
	names, values := splitTags(tags)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkLabels(name, names); err != nil {
		return err
	}
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      sanitizeName(name),
			Help:      name,
		}, names)
		if err := p.registry.Register(vec); err != nil {
			return fmt.Errorf("falha ao registrar gauge '%s': %w", name, err)
		}
		p.gauges[name] = vec
	}
	vec.WithLabelValues(values...).Set(value)
	return nil
}

func (p *PrometheusProvider) Histogram(name string, value float64, tags []string) error {
	names, values := splitTags(tags)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkLabels(name, names); err != nil {
		return err
	}
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      sanitizeName(name),
			Help:      name,
			Buckets:   latencyBuckets,
		}, names)
		if err := p.registry.Register(vec); err != nil {
			return fmt.Errorf("falha ao registrar histograma '%s': %w", name, err)
		}
		p.histograms[name] = vec
	}
	vec.WithLabelValues(values...).Observe(value)
	return nil
}

func (p *PrometheusProvider) checkLabels(name string, names []string) error {
	known, ok := p.labels[name]
	if !ok {
		p.labels[name] = names
		return nil
	}
	if strings.Join(known, ",") != strings.Join(names, ",") {
		return fmt.Errorf("métrica '%s' emitida com labels %v, esperado %v", name, names, known)
	}
	return nil
}

// splitTags ordena as tags pelo nome do label. Tags sem ":" viram label com valor vazio.
func splitTags(tags []string) ([]string, []string) {
	pairs := make([][2]string, 0, len(tags))
	for _, tag := range tags {
		k, v, _ := strings.Cut(tag, ":")
		pairs = append(pairs, [2]string{sanitizeName(k), v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	names := make([]string, len(pairs))
	values := make([]string, len(pairs))
	for i, pair := range pairs {
		names[i] = pair[0]
		values[i] = pair[1]
	}
	return names, values
}

func sanitizeName(name string) string {
	return invalidMetricChars.ReplaceAllString(name, "_")
}
