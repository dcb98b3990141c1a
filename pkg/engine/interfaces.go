package engine

import (
	"context"
	"net/http"

	"github.com/raywall/fast-endpoints/pkg/config"
)

// Loader é responsável por carregar e decodificar a configuração das APIs.
// Ele abstrai a origem do arquivo (Sistema de arquivos, S3, DynamoDB).
type Loader interface {
	// Load lê a configuração a partir de uma origem e retorna a struct validada.
	Load(ctx context.Context, source string) (*config.EndpointsConfig, error)
}

// Engine é o que os transportes (HTTP, Lambda, SQS) enxergam do framework.
// As implementações devem ser thread-safe: Handler é chamado por cada
// requisição enquanto Reload pode rodar em paralelo.
type Engine interface {
	// Handler devolve o front door completo; o que estiver fora do base path
	// e do registry vai para next.
	Handler(next http.Handler) http.Handler

	// Reload recarrega a configuração da origem e troca as APIs publicadas.
	Reload() error

	// Shutdown realiza o encerramento gracioso de recursos (flush de métricas).
	Shutdown(ctx context.Context) error
}

var (
	_ Loader = (*UniversalLoader)(nil)
	_ Engine = (*ServiceEngine)(nil)
)
