package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/raywall/fast-endpoints/pkg/apiconfig"
	"github.com/raywall/fast-endpoints/pkg/auth"
	"github.com/raywall/fast-endpoints/pkg/backend"
	"github.com/raywall/fast-endpoints/pkg/cache"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/discovery"
	"github.com/raywall/fast-endpoints/pkg/dispatcher"
	"github.com/raywall/fast-endpoints/pkg/logger"
	"github.com/raywall/fast-endpoints/pkg/metrics"
	"github.com/raywall/fast-endpoints/pkg/observability"
	"github.com/raywall/fast-endpoints/pkg/rules"
	"github.com/rs/zerolog"
)

// ErrNoConfig é devolvido quando a engine é criada sem configuração.
var ErrNoConfig = errors.New("configuração ausente")

type handlerKey struct {
	api     string
	version string
	method  string
}

// Option customiza a ServiceEngine na criação.
type Option func(*ServiceEngine)

// WithLoader troca o loader usado no hot reload.
func WithLoader(l Loader) Option {
	return func(se *ServiceEngine) { se.loader = l }
}

// WithHandler registra, já no boot, a implementação em código de um método.
func WithHandler(api, version, method string, h backend.Handler) Option {
	return func(se *ServiceEngine) {
		se.handlers[handlerKey{api, version, method}] = h
	}
}

// runtime é tudo o que é reconstruído a cada configuração aplicada.
type runtime struct {
	cfg        *config.EndpointsConfig
	backend    *backend.Server
	manager    *apiconfig.Manager
	discovery  *discovery.Service
	dispatcher *dispatcher.Dispatcher
}

// ServiceEngine monta o front door a partir da configuração.
//
// Logger, métricas, cache e credenciais de targets são criados uma vez no boot. Backend, registry,
// discovery e dispatcher são reconstruídos a cada Reload e trocados de forma
// atômica; requisições em andamento terminam na versão anterior.
type ServiceEngine struct {
	ConfigSource string
	Env          config.Environment
	Logger       zerolog.Logger
	Metrics      metrics.Provider
	Recorder     *metrics.Recorder
	RuleManager  *rules.RuleManager
	Store        cache.Store
	Credentials  *auth.Registry

	loader   Loader
	mu       sync.RWMutex
	handlers map[handlerKey]backend.Handler
	rt       *runtime
}

// NewServiceEngine inicializa a engine. Todo método declarado precisa de um
// target no YAML ou de um handler (WithHandler); caso contrário o boot falha.
func NewServiceEngine(cfg *config.EndpointsConfig, configSource string, env config.Environment, opts ...Option) (*ServiceEngine, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}

	log := logger.ForService(logger.Configure(cfg.Server.Logging), cfg.Server, env)

	metricProvider, err := observability.SetupMetrics(cfg.Server.Metrics)
	if err != nil {
		return nil, fmt.Errorf("falha métricas: %w", err)
	}

	rm, err := rules.NewRuleManager()
	if err != nil {
		return nil, fmt.Errorf("falha fatal ao iniciar RuleManager: %w", err)
	}

	store, err := cache.New(cfg.Server.Cache)
	if err != nil {
		return nil, fmt.Errorf("falha cache: %w", err)
	}

	se := &ServiceEngine{
		ConfigSource: configSource,
		Env:          env,
		Logger:       log,
		Metrics:      metricProvider,
		Recorder:     metrics.NewRecorder(metricProvider),
		RuleManager:  rm,
		Store:        store,
		Credentials:  auth.NewRegistry(),
		loader:       NewUniversalLoader(),
		handlers:     make(map[handlerKey]backend.Handler),
	}
	for _, opt := range opts {
		opt(se)
	}

	rt, err := se.build(cfg, se.handlers)
	if err != nil {
		return nil, err
	}
	se.rt = rt
	se.emitRegistered(rt)

	log.Info().
		Int("apis", len(cfg.APIs)).
		Str("base_path", cfg.Server.GetBasePath()).
		Msg("engine inicializada")
	return se, nil
}

// build registra as APIs no backend e alimenta o registry com os documentos
// publicados pelo próprio backend (o mesmo conteúdo de getApiConfigs).
func (se *ServiceEngine) build(cfg *config.EndpointsConfig, handlers map[handlerKey]backend.Handler) (*runtime, error) {
	server := backend.NewServer(cfg.Server.GetRegistryPath(), se.RuleManager).
		WithCredentials(func(c config.TargetAuthConf) backend.TokenSource { return se.Credentials.For(c) })

	used := make(map[handlerKey]bool, len(handlers))
	for _, api := range cfg.APIs {
		hs := make(map[string]backend.Handler)
		for k, h := range handlers {
			if k.api == api.Name && k.version == api.Version {
				hs[k.method] = h
				used[k] = true
			}
		}
		if err := server.RegisterConfig(api, hs); err != nil {
			return nil, fmt.Errorf("falha ao registrar api %s:%s: %w", api.Name, api.Version, err)
		}
	}
	for k := range handlers {
		if !used[k] {
			se.Logger.Warn().Str("api", k.api).Str("version", k.version).Str("method", k.method).
				Msg("handler registrado para api ausente da configuração")
		}
	}

	items := make([]string, 0, len(cfg.APIs))
	for _, doc := range server.GetAPIConfigs("") {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("falha ao serializar config de %s: %w", doc.Name, err)
		}
		items = append(items, string(raw))
	}

	manager := apiconfig.NewManager()
	if err := manager.ProcessAPIConfigs(items); err != nil {
		return nil, fmt.Errorf("registry rejeitou as apis: %w", err)
	}

	basePath := cfg.Server.GetBasePath()
	resolver := discovery.BaseURLResolver{Env: se.Env, BasePath: basePath}
	disc := discovery.NewService(manager, server, resolver, se.Store)

	return &runtime{
		cfg:       cfg,
		backend:   server,
		manager:   manager,
		discovery: disc,
		dispatcher: dispatcher.New(manager, server, disc, dispatcher.Options{
			BasePath: basePath,
			CORS:     cfg.Server.CORS,
			Recorder: se.Recorder,
		}),
	}, nil
}

func (se *ServiceEngine) current() *runtime {
	se.mu.RLock()
	defer se.mu.RUnlock()
	return se.rt
}

// Config devolve a configuração em uso.
func (se *ServiceEngine) Config() *config.EndpointsConfig {
	return se.current().cfg
}

func (se *ServiceEngine) Backend() *backend.Server {
	return se.current().backend
}

func (se *ServiceEngine) Manager() *apiconfig.Manager {
	return se.current().manager
}

func (se *ServiceEngine) Discovery() *discovery.Service {
	return se.current().discovery
}

func (se *ServiceEngine) Dispatcher() *dispatcher.Dispatcher {
	return se.current().dispatcher
}

// RegisterHandler liga um handler em código a um método declarado. As APIs
// são reconstruídas na hora; em caso de erro nada muda.
func (se *ServiceEngine) RegisterHandler(api, version, method string, h backend.Handler) error {
	if h == nil {
		return fmt.Errorf("%w: handler nil para %s", backend.ErrNoImplementation, method)
	}

	se.mu.Lock()
	defer se.mu.Unlock()

	next := make(map[handlerKey]backend.Handler, len(se.handlers)+1)
	for k, v := range se.handlers {
		next[k] = v
	}
	next[handlerKey{api, version, method}] = h

	rt, err := se.build(se.rt.cfg, next)
	if err != nil {
		return err
	}
	se.handlers, se.rt = next, rt
	return nil
}

// Handler devolve o front door: dispatcher no base path, SPI no registry
// path e next para o restante. Cada requisição respeita server.timeout.
func (se *ServiceEngine) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt := se.current()

		ctx, cancel := context.WithTimeout(r.Context(), rt.cfg.Server.GetTimeout())
		defer cancel()
		r = r.WithContext(ctx)

		if r.URL.Path == rt.backend.RegistryPath()+"/"+backend.GetAPIConfigsMethod {
			se.spi(rt).ServeHTTP(w, r)
			return
		}
		rt.dispatcher.Wrap(next).ServeHTTP(w, r)
	})
}

// SPIHandler atende BackendService.getApiConfigs com o backend em uso.
func (se *ServiceEngine) SPIHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		se.spi(se.current()).ServeHTTP(w, r)
	})
}

func (se *ServiceEngine) spi(rt *runtime) http.Handler {
	resolver := rt.discovery.Resolver()
	return backend.RegistryHandler(rt.backend, func(r *http.Request) string {
		server, port, scheme := dispatcher.RequestOrigin(r)
		return resolver.Resolve(server, port, scheme, true, "")
	})
}

// MetricsHandler expõe o scrape do Prometheus, quando habilitado.
func (se *ServiceEngine) MetricsHandler() (http.Handler, bool) {
	return observability.MetricsHandler(se.Metrics)
}

// Reload busca a configuração na origem e troca as APIs publicadas.
// Logging, métricas e cache permanecem os do boot.
func (se *ServiceEngine) Reload() error {
	se.Logger.Info().Str("source", se.ConfigSource).Msg("hot reload iniciado")
	ctx := se.Logger.WithContext(context.Background())

	newCfg, err := se.loader.Load(ctx, se.ConfigSource)
	if err != nil {
		return fmt.Errorf("falha ao carregar nova configuração: %w", err)
	}

	se.mu.Lock()
	rt, err := se.build(newCfg, se.handlers)
	if err != nil {
		se.mu.Unlock()
		return fmt.Errorf("nova configuração rejeitada: %w", err)
	}
	se.rt = rt
	se.mu.Unlock()

	if err := rt.discovery.Invalidate(ctx); err != nil {
		se.Logger.Warn().Err(err).Msg("falha ao invalidar cache de discovery")
	}
	if err := se.Recorder.Emit(metrics.ConfigReloads, 1, []string{"service:" + newCfg.Server.Name}); err != nil {
		se.Logger.Warn().Err(err).Msg("falha ao registrar métrica de reload")
	}
	se.emitRegistered(rt)

	se.Logger.Info().Strs("apis", apiNames(rt.manager.APIs())).Msg("hot reload concluído")
	return nil
}

// Shutdown descarrega as métricas pendentes.
func (se *ServiceEngine) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- observability.Close(se.Metrics) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (se *ServiceEngine) emitRegistered(rt *runtime) {
	if err := se.Recorder.Emit(metrics.RegisteredAPIs, float64(len(rt.manager.APIs())), nil); err != nil {
		se.Logger.Warn().Err(err).Msg("falha ao registrar métrica de apis")
	}
}

func apiNames(apis []apiconfig.API) []string {
	out := make([]string, 0, len(apis))
	for _, a := range apis {
		out = append(out, a.Key().String())
	}
	sort.Strings(out)
	return out
}
