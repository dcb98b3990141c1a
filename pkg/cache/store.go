package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/redis/go-redis/v9"
)

// ErrMiss indica que a chave não está no cache (ou expirou).
var ErrMiss = errors.New("cache miss")

// Store guarda documentos gerados (config, discovery, directory) já
// serializados. As implementações são seguras para uso concorrente.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Flush invalida tudo o que este Store gravou (usado no hot reload).
	Flush(ctx context.Context) error
}

const defaultSize = 256

// New escolhe a implementação a partir da configuração do servidor.
func New(cfg config.CacheConf) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		size := cfg.Size
		if size <= 0 {
			size = defaultSize
		}
		return NewMemoryStore(size, cfg.GetTTL()), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return NewRedisStore(client, cfg.Prefix, cfg.GetTTL()), nil

	case "none":
		return NoopStore{}, nil
	}
	return nil, fmt.Errorf("tipo de cache desconhecido: '%s'", cfg.Type)
}

// NoopStore desliga o cache: toda leitura é um miss.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (NoopStore) Set(context.Context, string, []byte) error   { return nil }
func (NoopStore) Delete(context.Context, string) error        { return nil }
func (NoopStore) Flush(context.Context) error                 { return nil }
