package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/raywall/fast-endpoints/pkg/apiconfig"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/proxy"
	"github.com/raywall/fast-endpoints/pkg/rules"
	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicateAPI     = errors.New("api já registrada")
	ErrNoImplementation = errors.New("método sem handler nem target")
	ErrUnknownMethod    = errors.New("método não declarado na api")
)

// forwardedHeaders são repassados ao target nos métodos proxied.
var forwardedHeaders = []string{"Authorization", "X-Request-Id", "X-Correlation-Id", "Accept-Language"}

// MethodBinding liga um método declarado à sua implementação: um Handler em
// código ou um target HTTP. Validations rodam antes de qualquer um dos dois.
type MethodBinding struct {
	Handler     Handler
	Target      config.TargetConf
	Validations []config.ValidationRule
	Credentials TokenSource
}

// TokenSource fornece o bearer token enviado ao target.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// CredentialsFunc resolve a TokenSource de um target com auth declarado.
type CredentialsFunc func(config.TargetAuthConf) TokenSource

type binding struct {
	MethodBinding
	api    apiconfig.Key
	method apiconfig.Method
}

// methodKey identifica um método pelo nome interno dentro de uma API/versão.
type methodKey struct {
	api  apiconfig.Key
	rosy string
}

// Server é o backend das APIs: guarda os serviços registrados e executa os
// métodos pelo nome interno (rosyMethod).
type Server struct {
	registryPath string
	rules        *rules.RuleManager
	generator    *apiconfig.Generator
	credentials  CredentialsFunc

	mu      sync.RWMutex
	apis    map[apiconfig.Key]apiconfig.API
	methods map[methodKey]*binding
}

// NewServer cria o backend publicado em registryPath.
func NewServer(registryPath string, rm *rules.RuleManager) *Server {
	if registryPath == "" {
		registryPath = config.DefaultRegistryPath
	}
	return &Server{
		registryPath: strings.TrimRight(registryPath, "/"),
		rules:        rm,
		generator:    apiconfig.NewGenerator(),
		apis:         make(map[apiconfig.Key]apiconfig.API),
		methods:      make(map[methodKey]*binding),
	}
}

// WithCredentials define como obter tokens para targets com bloco auth.
func (s *Server) WithCredentials(fn CredentialsFunc) *Server {
	s.credentials = fn
	return s
}

// RegistryPath devolve o prefixo do SPI.
func (s *Server) RegistryPath() string {
	return s.registryPath
}

// Register adiciona uma API. Todo método precisa de um binding com Handler
// ou Target.URL; bindings para métodos não declarados são rejeitados.
func (s *Server) Register(api apiconfig.API, bindings map[string]MethodBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := api.Key()
	if _, exists := s.apis[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAPI, key)
	}

	declared := make(map[string]bool, len(api.Methods))
	staged := make(map[methodKey]*binding, len(api.Methods))
	for _, m := range api.Methods {
		declared[m.Name] = true
		b, ok := bindings[m.Name]
		if !ok || (b.Handler == nil && b.Target.URL == "") {
			return fmt.Errorf("%w: %s (%s)", ErrNoImplementation, m.Name, key)
		}
		mk := methodKey{api: key, rosy: m.RosyMethod}
		if _, dup := staged[mk]; dup {
			return fmt.Errorf("%w: rosyMethod '%s' repetido em %s", ErrDuplicateAPI, m.RosyMethod, key)
		}
		staged[mk] = &binding{MethodBinding: b, api: key, method: m}
	}
	for name := range bindings {
		if !declared[name] {
			return fmt.Errorf("%w: %s (%s)", ErrUnknownMethod, name, key)
		}
	}

	s.apis[key] = api
	for mk, b := range staged {
		s.methods[mk] = b
	}
	return nil
}

// RegisterConfig registra uma API declarada no YAML. handlers sobrepõe o
// target de qualquer método (chave = nome do método).
func (s *Server) RegisterConfig(cfg config.APIConf, handlers map[string]Handler) error {
	bindings := make(map[string]MethodBinding, len(cfg.Methods))
	for _, m := range cfg.Methods {
		b := MethodBinding{
			Handler:     handlers[m.Name],
			Target:      m.Target,
			Validations: m.Validations,
		}
		if m.Target.Auth != nil && s.credentials != nil {
			b.Credentials = s.credentials(*m.Target.Auth)
		}
		bindings[m.Name] = b
	}
	for name := range handlers {
		if _, ok := bindings[name]; !ok {
			return fmt.Errorf("%w: %s (%s:%s)", ErrUnknownMethod, name, cfg.Name, cfg.Version)
		}
	}
	return s.Register(apiconfig.FromConfig(cfg), bindings)
}

// APINameVersionMap devolve as APIs registradas indexadas por (nome, versão).
func (s *Server) APINameVersionMap() map[apiconfig.Key]apiconfig.API {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[apiconfig.Key]apiconfig.API, len(s.apis))
	for k, v := range s.apis {
		out[k] = v
	}
	return out
}

// APIs devolve as APIs registradas ordenadas por nome e versão.
func (s *Server) APIs() []apiconfig.API {
	m := s.APINameVersionMap()
	out := make([]apiconfig.API, 0, len(m))
	for _, api := range m {
		out = append(out, api)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// GetAPIConfigs gera os documentos de configuração de todas as APIs usando root.
func (s *Server) GetAPIConfigs(root string) []apiconfig.Document {
	apis := s.APIs()
	docs := make([]apiconfig.Document, 0, len(apis))
	for _, api := range apis {
		docs = append(docs, s.generator.Generate(api, root))
	}
	return docs
}

// Invoke executa o método rosyMethod da API informada.
//
// Os erros devolvidos são sempre *ServiceError.
func (s *Server) Invoke(ctx context.Context, api apiconfig.Key, rosyMethod string, req *Request) (any, error) {
	s.mu.RLock()
	b, ok := s.methods[methodKey{api: api, rosy: rosyMethod}]
	s.mu.RUnlock()
	if !ok {
		return nil, NotFound(fmt.Sprintf("método '%s' não encontrado em %s", rosyMethod, api))
	}
	if req == nil {
		req, _ = NewRequest(nil, nil, nil, nil)
	}

	logger := log.Ctx(ctx).With().Str("api", b.api.String()).Str("method", b.method.Name).Logger()

	if len(b.Validations) > 0 {
		if s.rules == nil {
			return nil, InternalServerError("validações configuradas sem RuleManager")
		}
		violation, err := s.rules.Validate(b.Validations, req.vars())
		if err != nil {
			logger.Error().Err(err).Msg("falha ao avaliar validações")
			return nil, InternalServerError("falha ao avaliar validações")
		}
		if violation != nil {
			logger.Debug().Str("rule", violation.RuleID).Int("code", violation.Code).Msg("requisição rejeitada pela validação")
			return nil, NewError(violation.Code, violation.Message)
		}
	}

	if b.Handler != nil {
		result, err := b.Handler(ctx, req)
		if err != nil {
			se := AsServiceError(err)
			if se.Code >= http.StatusInternalServerError {
				logger.Error().Err(err).Msg("handler falhou")
			}
			return nil, se
		}
		return result, nil
	}

	return s.forward(ctx, b, req)
}

func (s *Server) forward(ctx context.Context, b *binding, req *Request) (any, error) {
	method := b.Target.Method
	if method == "" {
		method = b.method.HTTPMethod
	}

	headers := make(map[string]string)
	for _, h := range forwardedHeaders {
		if v := req.Headers.Get(h); v != "" {
			headers[h] = v
		}
	}

	if b.Credentials != nil {
		token, err := b.Credentials.Token(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("target", b.Target.URL).Msg("falha ao obter credenciais do target")
			return nil, NewError(http.StatusServiceUnavailable, "backend indisponível")
		}
		headers["Authorization"] = "Bearer " + token
	}

	resp, err := proxy.ForwardRequest(ctx, proxy.Request{
		Method:  method,
		URL:     proxy.ExpandURL(b.Target.URL, req.PathParams),
		Body:    req.RawBody,
		Headers: headers,
		Query:   req.Query,
		Timeout: b.Target.Timeout,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("target", b.Target.URL).Msg("falha ao encaminhar chamada")
		return nil, NewError(http.StatusServiceUnavailable, "backend indisponível")
	}

	if resp.StatusCode == http.StatusUnauthorized && b.Credentials != nil {
		b.Credentials.Invalidate()
	}
	if resp.StatusCode >= 400 {
		return nil, NewError(resp.StatusCode, targetErrorMessage(resp.Body, resp.StatusCode))
	}
	if len(resp.Body) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if json.Valid(resp.Body) {
		return json.RawMessage(resp.Body), nil
	}
	return map[string]interface{}{"data": string(resp.Body)}, nil
}

// targetErrorMessage extrai "message" (ou "error.message") do corpo de erro do target.
func targetErrorMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
	}
	return http.StatusText(status)
}
