package metrics

import (
	"fmt"
	"strconv"
	"time"
)

// Recorder traduz eventos do front door em chamadas ao Provider.
type Recorder struct {
	provider Provider
}

// NewRecorder cria um Recorder. Provider nil descarta tudo.
func NewRecorder(provider Provider) *Recorder {
	return &Recorder{provider: provider}
}

// RequestInfo identifica a chamada medida.
type RequestInfo struct {
	API       string
	Version   string
	Method    string
	Transport string // rest, rpc, discovery, explorer
	Status    int
}

func (ri RequestInfo) tags() []string {
	api := ri.API
	if api == "" {
		api = "none"
	}
	tags := []string{
		"api:" + api,
		"transport:" + ri.Transport,
		"status:" + strconv.Itoa(ri.Status),
	}
	if ri.Version != "" {
		tags = append(tags, "version:"+ri.Version)
	} else {
		tags = append(tags, "version:none")
	}
	if ri.Method != "" {
		tags = append(tags, "method:"+ri.Method)
	} else {
		tags = append(tags, "method:none")
	}
	return tags
}

// Request registra contagem e latência de uma chamada.
func (r *Recorder) Request(ri RequestInfo, latency time.Duration) error {
	tags := ri.tags()
	if err := r.Emit(RequestCount, 1, tags); err != nil {
		return err
	}
	return r.Emit(RequestLatency, float64(latency.Microseconds())/1000, tags)
}

// Emit envia o valor conforme o tipo da definição.
func (r *Recorder) Emit(def MetricDefinition, value float64, tags []string) error {
	if r == nil || r.provider == nil {
		return nil
	}
	switch def.Type {
	case TypeCount:
		return r.provider.Count(def.Name, value, tags)
	case TypeGauge:
		return r.provider.Gauge(def.Name, value, tags)
	case TypeHistogram:
		return r.provider.Histogram(def.Name, value, tags)
	default:
		return fmt.Errorf("tipo de métrica desconhecido: %s", def.Type)
	}
}
