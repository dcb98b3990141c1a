package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/raywall/fast-endpoints/pkg/apiconfig"
	"github.com/raywall/fast-endpoints/pkg/backend"
	"github.com/raywall/fast-endpoints/pkg/cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Formatos de discovery suportados.
const (
	FormatRest = "rest"
	FormatRPC  = "rpc"
)

var ErrUnknownFormat = errors.New("formato de discovery desconhecido")

// ConfigRequest descreve a requisição que originou a geração.
type ConfigRequest struct {
	Server  string
	Port    string
	Scheme  string
	API     string
	Version string
}

// Service gera os documentos de configuração e de discovery das APIs.
//
// Documentos de discovery e a listagem ficam no cache.Store, indexados pelo
// formato, pela API e pelo root calculado; gerações concorrentes da mesma
// chave são unificadas.
type Service struct {
	manager   *apiconfig.Manager
	backend   *backend.Server
	resolver  BaseURLResolver
	generator *apiconfig.Generator
	store     cache.Store
	group     singleflight.Group
}

// NewService cria o serviço. store nil desativa o cache.
func NewService(manager *apiconfig.Manager, server *backend.Server, resolver BaseURLResolver, store cache.Store) *Service {
	if store == nil {
		store = cache.NoopStore{}
	}
	return &Service{
		manager:   manager,
		backend:   server,
		resolver:  resolver,
		generator: apiconfig.NewGenerator(),
		store:     store,
	}
}

// Resolver expõe o resolvedor de root usado pelo serviço.
func (s *Service) Resolver() BaseURLResolver {
	return s.resolver
}

// GenerateAPIConfigWithRoot gera o documento de configuração da API
// (req.API, req.Version) com root e adapter.bns apontando para o root calculado.
func (s *Service) GenerateAPIConfigWithRoot(req ConfigRequest, local bool) (apiconfig.Document, error) {
	key := apiconfig.Key{Name: req.API, Version: req.Version}
	api, ok := s.backend.APINameVersionMap()[key]
	if !ok {
		return apiconfig.Document{}, fmt.Errorf("%w: %s", apiconfig.ErrAPINotFound, key)
	}
	root := s.resolver.Resolve(req.Server, req.Port, req.Scheme, local, api.Hostname)
	return s.generator.Generate(api, root), nil
}

// GenerateDiscoveryDoc devolve o documento de discovery serializado.
func (s *Service) GenerateDiscoveryDoc(ctx context.Context, req ConfigRequest, format string) ([]byte, error) {
	if format != FormatRest && format != FormatRPC {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	doc, err := s.GenerateAPIConfigWithRoot(req, true)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("discovery|%s|%s|%s|%s", format, req.API, req.Version, doc.Root)
	return s.cached(ctx, cacheKey, func() (interface{}, error) {
		if format == FormatRPC {
			return BuildRPCDescription(doc), nil
		}
		return BuildRestDescription(doc), nil
	})
}

// GenerateDirectory devolve a listagem das APIs conhecidas pelo registry.
func (s *Service) GenerateDirectory(ctx context.Context, req ConfigRequest) ([]byte, error) {
	root := s.resolver.Resolve(req.Server, req.Port, req.Scheme, true, "")
	return s.cached(ctx, "directory|"+root, func() (interface{}, error) {
		return BuildDirectory(s.manager.APIs(), root), nil
	})
}

// Invalidate descarta os documentos em cache (usado após reload).
func (s *Service) Invalidate(ctx context.Context) error {
	return s.store.Flush(ctx)
}

func (s *Service) cached(ctx context.Context, key string, build func() (interface{}, error)) ([]byte, error) {
	if raw, err := s.store.Get(ctx, key); err == nil {
		return raw, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("falha ao ler cache de discovery")
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		doc, err := build()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("erro ao serializar documento de discovery: %w", err)
		}
		if err := s.store.Set(ctx, key, raw); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("falha ao gravar cache de discovery")
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
