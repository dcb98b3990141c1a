package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/raywall/fast-endpoints/pkg/apiconfig"
	"github.com/raywall/fast-endpoints/pkg/backend"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/discovery"
	"github.com/raywall/fast-endpoints/pkg/metrics"
	"github.com/raywall/fast-endpoints/pkg/responder"
	"github.com/rs/zerolog/log"
)

// DefaultMaxBodyBytes limita o corpo aceito nas chamadas REST e RPC.
const DefaultMaxBodyBytes = 10 << 20

// Options configura o Dispatcher.
type Options struct {
	BasePath     string
	CORS         config.CORSConf
	Recorder     *metrics.Recorder
	MaxBodyBytes int64
}

// Dispatcher é o front door publicado sob o base path: roteia chamadas REST
// e JSON-RPC para o backend, serve discovery e redireciona para o explorer.
type Dispatcher struct {
	manager   *apiconfig.Manager
	backend   *backend.Server
	discovery *discovery.Service
	opts      Options
	basePath  string
	handler   http.Handler
}

// New monta o Dispatcher e suas rotas.
func New(manager *apiconfig.Manager, server *backend.Server, disc *discovery.Service, opts Options) *Dispatcher {
	basePath := "/" + strings.Trim(opts.BasePath, "/")
	if basePath == "/" {
		basePath = config.DefaultBasePath
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	d := &Dispatcher{
		manager:   manager,
		backend:   server,
		discovery: disc,
		opts:      opts,
		basePath:  basePath,
	}

	router := mux.NewRouter().UseEncodedPath().SkipClean(true)
	base := router.PathPrefix(basePath).Subrouter()

	base.HandleFunc("/explorer", d.handleExplorer).Methods(http.MethodGet)
	base.HandleFunc("/explorer/", d.handleExplorer).Methods(http.MethodGet)
	base.HandleFunc("/discovery/v1/apis", d.handleDirectory).Methods(http.MethodGet)
	base.HandleFunc("/discovery/v1/apis/{api}/{version}/{format}", d.handleDiscovery).Methods(http.MethodGet)
	base.HandleFunc("/rpc", d.handleRPC).Methods(http.MethodPost)
	base.PathPrefix("/").HandlerFunc(d.handleREST)
	router.NotFoundHandler = http.HandlerFunc(d.handleREST)

	d.handler = d.instrument(d.cors(router))
	return d
}

// BasePath devolve o prefixo atendido.
func (d *Dispatcher) BasePath() string {
	return d.basePath
}

// Handles indica se o path pertence ao base path.
func (d *Dispatcher) Handles(path string) bool {
	return path == d.basePath || strings.HasPrefix(path, d.basePath+"/")
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.handler.ServeHTTP(w, r)
}

// Wrap devolve um handler que atende o base path e repassa o resto para next.
func (d *Dispatcher) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.Handles(r.URL.Path) {
			d.ServeHTTP(w, r)
			return
		}
		if next == nil {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Handlers ---

func (d *Dispatcher) handleExplorer(w http.ResponseWriter, r *http.Request) {
	call := callFrom(r.Context())
	call.transport = "explorer"

	server, port, _ := RequestOrigin(r)
	portNum, err := strconv.Atoi(port)
	if err != nil {
		portNum = 80
	}
	http.Redirect(w, r, ExplorerRedirectURL(server, portNum, d.basePath), http.StatusFound)
}

func (d *Dispatcher) handleDirectory(w http.ResponseWriter, r *http.Request) {
	call := callFrom(r.Context())
	call.transport = "discovery"

	server, port, scheme := RequestOrigin(r)
	raw, err := d.discovery.GenerateDirectory(r.Context(), discovery.ConfigRequest{Server: server, Port: port, Scheme: scheme})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("falha ao gerar listagem de discovery")
		responder.WriteError(w, backend.InternalServerError("falha ao gerar listagem"), responder.Prettify(r))
		return
	}
	responder.WriteRaw(w, http.StatusOK, raw)
}

func (d *Dispatcher) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	call := callFrom(r.Context())
	call.transport = "discovery"
	call.api, call.version = vars["api"], vars["version"]

	server, port, scheme := RequestOrigin(r)
	req := discovery.ConfigRequest{Server: server, Port: port, Scheme: scheme, API: vars["api"], Version: vars["version"]}

	raw, err := d.discovery.GenerateDiscoveryDoc(r.Context(), req, vars["format"])
	switch {
	case errors.Is(err, apiconfig.ErrAPINotFound), errors.Is(err, discovery.ErrUnknownFormat):
		responder.WriteError(w, backend.NotFound(err.Error()), responder.Prettify(r))
	case err != nil:
		log.Ctx(r.Context()).Error().Err(err).Str("api", req.API).Msg("falha ao gerar discovery")
		responder.WriteError(w, backend.InternalServerError("falha ao gerar discovery"), responder.Prettify(r))
	default:
		responder.WriteRaw(w, http.StatusOK, raw)
	}
}

func (d *Dispatcher) handleREST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	call := callFrom(ctx)
	call.transport = "rest"
	pretty := responder.Prettify(r)

	rel := strings.TrimPrefix(r.URL.EscapedPath(), d.basePath)
	match, err := d.manager.LookupRESTMethod(rel, r.Method)
	if err != nil {
		if allowed := d.manager.AllowedMethods(rel); len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			responder.WriteError(w, backend.NewError(http.StatusMethodNotAllowed, fmt.Sprintf("%s não é aceito em /%s", r.Method, strings.Trim(rel, "/"))), pretty)
			return
		}
		responder.WriteError(w, backend.NotFound(fmt.Sprintf("nenhum método para %s /%s", r.Method, strings.Trim(rel, "/"))), pretty)
		return
	}
	call.api, call.version, call.method = match.API.Name, match.API.Version, match.Method.Name

	body, err := d.readBody(w, r)
	if err != nil {
		responder.WriteError(w, backend.AsServiceError(err), pretty)
		return
	}

	query := r.URL.Query()
	query.Del("prettyPrint")

	req, err := backend.NewRequest(body, match.Params, query, r.Header)
	if err != nil {
		responder.WriteError(w, backend.AsServiceError(err), pretty)
		return
	}

	result, err := d.backend.Invoke(ctx, match.API, match.Method.RosyMethod, req)
	if err != nil {
		responder.WriteError(w, backend.AsServiceError(err), pretty)
		return
	}
	responder.WriteJSON(w, http.StatusOK, result, pretty)
}

func (d *Dispatcher) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, backend.NewError(http.StatusRequestEntityTooLarge, "corpo da requisição excede o limite")
		}
		return nil, backend.BadRequest("falha ao ler corpo da requisição")
	}
	return body, nil
}

// --- Infra ---

// RequestOrigin extrai server, porta e esquema da requisição. Atrás de um
// balanceador, X-Forwarded-Proto define o esquema.
func RequestOrigin(r *http.Request) (server, port, scheme string) {
	scheme = "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}

	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	server, port, err := net.SplitHostPort(host)
	if err != nil {
		server = strings.Trim(host, "[]")
		port = "80"
		if scheme == "https" {
			port = "443"
		}
	}
	return server, port, scheme
}

type callInfo struct {
	api       string
	version   string
	method    string
	transport string
}

type callKey struct{}

func callFrom(ctx context.Context) *callInfo {
	if c, ok := ctx.Value(callKey{}).(*callInfo); ok {
		return c
	}
	return &callInfo{}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// instrument registra métricas e log de cada chamada.
func (d *Dispatcher) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		call := &callInfo{transport: "rest"}
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), callKey{}, call)))

		latency := time.Since(start)
		err := d.opts.Recorder.Request(metrics.RequestInfo{
			API:       call.api,
			Version:   call.version,
			Method:    call.method,
			Transport: call.transport,
			Status:    sw.status,
		}, latency)
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("falha ao registrar métricas")
		}

		log.Ctx(r.Context()).Debug().
			Str("transport", call.transport).
			Str("api", call.api).
			Str("method", call.method).
			Int("status", sw.status).
			Dur("latency", latency).
			Msg("chamada atendida")
	})
}
