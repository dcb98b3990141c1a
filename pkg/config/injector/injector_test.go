package injector_test

import (
	"context"
	"errors"
	"testing"

	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/config/injector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestConfig struct {
	Name        string `yaml:"name" env:"SERVICE_NAME"` // Caso 1: Tag
	APIKey      string `yaml:"api_key"`                 // Caso 2: Interpolação String "${env.KEY}"
	Description string `yaml:"description"`             // Caso 3: Texto misto
	Meta        map[string]interface{}
	Headers     map[string]string
	Origins     []string
	Nested      *NestedConfig
}

type NestedConfig struct {
	URL string
}

type fakeResolver struct {
	values map[string]string
}

func (f *fakeResolver) Resolve(_ context.Context, source, key string) (string, error) {
	v, ok := f.values[source+"."+key]
	if !ok {
		return "", errors.New("não encontrado")
	}
	return v, nil
}

func TestInjector_Inject_Environment(t *testing.T) {
	t.Setenv("SERVICE_NAME", "OrderService")
	t.Setenv("API_KEY", "12345-abcde")
	t.Setenv("REGION", "us-east-1")
	t.Setenv("DB_HOST", "localhost")

	inj := injector.New()

	target := &TestConfig{
		Name:        "Placeholder", // Deve ser sobrescrito pela tag
		APIKey:      "${env.API_KEY}",
		Description: "Service running in ${env.REGION}",
		Meta: map[string]interface{}{
			"db_host": "${env.DB_HOST}",
			"timeout": 5000, // Inteiro não deve ser tocado
			"nested":  map[string]interface{}{"region": "${env.REGION}"},
		},
		Headers: map[string]string{"x-region": "${env.REGION}"},
		Origins: []string{"https://${env.REGION}.example.com"},
		Nested: &NestedConfig{
			URL: "https://${env.REGION}.api.com",
		},
	}

	err := inj.Inject(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, "OrderService", target.Name, "Tag env não funcionou")
	assert.Equal(t, "12345-abcde", target.APIKey, "Interpolação direta falhou")
	assert.Equal(t, "Service running in us-east-1", target.Description, "Interpolação mista falhou")
	assert.Equal(t, "localhost", target.Meta["db_host"], "Interpolação em mapa falhou")
	assert.Equal(t, 5000, target.Meta["timeout"])
	assert.Equal(t, "us-east-1", target.Meta["nested"].(map[string]interface{})["region"])
	assert.Equal(t, "us-east-1", target.Headers["x-region"])
	assert.Equal(t, []string{"https://us-east-1.example.com"}, target.Origins)
	assert.Equal(t, "https://us-east-1.api.com", target.Nested.URL, "Interpolação aninhada falhou")
}

func TestInjector_Inject_Resolver(t *testing.T) {
	inj := injector.New(&fakeResolver{values: map[string]string{
		"ssm./endpoints/redis/addr": "redis.internal:6379",
		"secret.redis#password":     "s3cr3t",
	}})

	cfg := &config.EndpointsConfig{
		Server: config.ServerConf{
			Cache: config.CacheConf{
				Type:     "redis",
				Addr:     "${ssm./endpoints/redis/addr}",
				Password: "${secret.redis#password}",
			},
		},
	}

	require.NoError(t, inj.Inject(context.Background(), cfg))
	assert.Equal(t, "redis.internal:6379", cfg.Server.Cache.Addr)
	assert.Equal(t, "s3cr3t", cfg.Server.Cache.Password)
}

func TestInjector_Inject_Errors(t *testing.T) {
	t.Run("Target Inválido", func(t *testing.T) {
		inj := injector.New()
		assert.Error(t, inj.Inject(context.Background(), TestConfig{}))
		assert.Error(t, inj.Inject(context.Background(), (*TestConfig)(nil)))
	})

	t.Run("Referência AWS Sem Resolver", func(t *testing.T) {
		inj := injector.New()
		err := inj.Inject(context.Background(), &TestConfig{APIKey: "${ssm./x}"})
		assert.Error(t, err)
	})

	t.Run("Falha Do Resolver", func(t *testing.T) {
		inj := injector.New(&fakeResolver{})
		err := inj.Inject(context.Background(), &TestConfig{
			Meta: map[string]interface{}{"k": "${secret.missing}"},
		})
		assert.Error(t, err)
	})
}
