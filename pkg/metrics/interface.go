package metrics

// Provider define o contrato para envio de métricas.
// Isso permite trocar Datadog por Prometheus ou Logging sem alterar o dispatcher.
//
// As tags seguem o formato "chave:valor".
type Provider interface {
	Count(name string, value float64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
}

// MetricType define os tipos suportados.
type MetricType string

const (
	TypeCount     MetricType = "count"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// MetricDefinition armazena os metadados da métrica (nome real, tipo).
type MetricDefinition struct {
	Name string
	Type MetricType
}

// Métricas emitidas pelo front door.
var (
	RequestCount   = MetricDefinition{Name: "endpoints.request.count", Type: TypeCount}
	RequestLatency = MetricDefinition{Name: "endpoints.request.latency_ms", Type: TypeHistogram}
	ConfigReloads  = MetricDefinition{Name: "endpoints.config.reload", Type: TypeCount}
	RegisteredAPIs = MetricDefinition{Name: "endpoints.apis.registered", Type: TypeGauge}
)
