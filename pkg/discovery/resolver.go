package discovery

import (
	"net"
	"strings"

	"github.com/raywall/fast-endpoints/pkg/config"
)

// BaseURLResolver calcula o root ("{scheme}://{host}[:{port}]{basePath}")
// publicado nos documentos gerados.
//
// Em geração local, ou em qualquer geração no servidor de desenvolvimento,
// o root reflete a própria requisição. Em geração remota em produção, o
// hostname declarado pela API (quando houver) vence, sempre em https.
type BaseURLResolver struct {
	Env      config.Environment
	BasePath string
}

// Resolve devolve o root para a requisição. hostname é o hostname declarado
// pela API, vazio quando ela não declara nenhum.
func (r BaseURLResolver) Resolve(server, port, scheme string, local bool, hostname string) string {
	if !local && !r.Env.IsDevelopment() && hostname != "" {
		server, port, scheme = hostname, "443", "https"
	}

	scheme = strings.ToLower(scheme)
	if scheme == "" {
		scheme = "http"
	}

	if isDefaultPort(scheme, port) {
		port = ""
	}
	host := JoinHost(server, port)

	basePath := r.BasePath
	if basePath == "" {
		basePath = config.DefaultBasePath
	}
	return scheme + "://" + host + "/" + strings.Trim(basePath, "/")
}

// ResolveBaseURL é o atalho sem hostname declarado e com o base path padrão.
func ResolveBaseURL(server, port, scheme string, local bool, env config.Environment) string {
	return BaseURLResolver{Env: env}.Resolve(server, port, scheme, local, "")
}

// JoinHost monta a autoridade da URL. Literais IPv6 sempre vão entre
// colchetes, com ou sem porta; port vazia omite a porta.
func JoinHost(server, port string) string {
	server = strings.TrimSuffix(strings.TrimPrefix(server, "["), "]")
	if port != "" {
		return net.JoinHostPort(server, port)
	}
	if strings.Contains(server, ":") {
		return "[" + server + "]"
	}
	return server
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
