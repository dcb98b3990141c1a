package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raywall/fast-endpoints/pkg/apiconfig"
	"github.com/raywall/fast-endpoints/pkg/backend"
	"github.com/raywall/fast-endpoints/pkg/cache"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *backend.Request) (any, error) { return nil, nil }

func newBackend(t *testing.T) *backend.Server {
	t.Helper()
	s := backend.NewServer("/my_registry", nil)
	err := s.RegisterConfig(config.APIConf{
		Name:        "aservice",
		Version:     "v3",
		Hostname:    "aservice.appspot.com",
		Description: "A Service API",
		Methods: []config.MethodConf{
			{Name: "aservice.noop", Path: "noop", HTTPMethod: "POST"},
			{Name: "aservice.items.get", Path: "items/{id}", HTTPMethod: "GET"},
		},
	}, map[string]backend.Handler{"aservice.noop": noop, "aservice.items.get": noop})
	require.NoError(t, err)
	return s
}

func newService(t *testing.T, env config.Environment, store cache.Store) *Service {
	t.Helper()
	server := newBackend(t)
	manager := apiconfig.NewManager()
	require.NoError(t, manager.ProcessAPIs(server.APIs()))
	return NewService(manager, server, BaseURLResolver{Env: env}, store)
}

func checkAPIConfig(t *testing.T, s *Service, expected, server, port, scheme string, local bool) {
	t.Helper()
	doc, err := s.GenerateAPIConfigWithRoot(ConfigRequest{
		Server: server, Port: port, Scheme: scheme, API: "aservice", Version: "v3",
	}, local)
	require.NoError(t, err)
	assert.Equal(t, expected, doc.Adapter.BNS)
	assert.Equal(t, expected, doc.Root)
}

func TestGenerateAPIConfigWithRoot_Prod(t *testing.T) {
	s := newService(t, config.Production, nil)

	checkAPIConfig(t, s, "https://test.appspot.com:12345/_ah/api", "test.appspot.com", "12345", "https", true)
	checkAPIConfig(t, s, "http://localhost:12345/_ah/api", "localhost", "12345", "http", true)
	checkAPIConfig(t, s, "http://localhost/_ah/api", "localhost", "80", "http", true)
	checkAPIConfig(t, s, "https://test.appspot.com/_ah/api", "test.appspot.com", "443", "https", true)

	// Geração remota em produção publica o hostname da API
	checkAPIConfig(t, s, "https://aservice.appspot.com/_ah/api", "test.appspot.com", "12345", "http", false)
}

func TestGenerateAPIConfigWithRoot_DevServer(t *testing.T) {
	s := newService(t, config.Development("2.0.0"), nil)

	checkAPIConfig(t, s, "http://test.appspot.com/_ah/api", "test.appspot.com", "80", "http", false)
	checkAPIConfig(t, s, "https://test.appspot.com/_ah/api", "test.appspot.com", "443", "https", true)
	checkAPIConfig(t, s, "http://test.appspot.com:12345/_ah/api", "test.appspot.com", "12345", "http", false)
}

func TestGenerateAPIConfigWithRoot_NotFound(t *testing.T) {
	s := newService(t, config.Production, nil)
	_, err := s.GenerateAPIConfigWithRoot(ConfigRequest{Server: "localhost", Port: "80", Scheme: "http", API: "aservice", Version: "v9"}, true)
	assert.True(t, errors.Is(err, apiconfig.ErrAPINotFound))
}

func TestGenerateDiscoveryDoc(t *testing.T) {
	s := newService(t, config.Production, cache.NewMemoryStore(16, time.Minute))
	ctx := context.Background()
	req := ConfigRequest{Server: "localhost", Port: "8080", Scheme: "http", API: "aservice", Version: "v3"}

	t.Run("REST", func(t *testing.T) {
		raw, err := s.GenerateDiscoveryDoc(ctx, req, FormatRest)
		require.NoError(t, err)

		var d Description
		require.NoError(t, json.Unmarshal(raw, &d))
		assert.Equal(t, KindRest, d.Kind)
		assert.Equal(t, "aservice:v3", d.ID)
		assert.Equal(t, "http://localhost:8080/_ah/api/", d.RootURL)
		assert.Equal(t, "aservice/v3/", d.ServicePath)
		assert.Equal(t, "http://localhost:8080/_ah/api/aservice/v3/", d.BaseURL)
		assert.Equal(t, "/_ah/api/aservice/v3/", d.BasePath)

		require.Contains(t, d.Methods, "noop")
		assert.Equal(t, "POST", d.Methods["noop"].HTTPMethod)
		require.NotNil(t, d.Methods["noop"].Request)

		get := d.Resources["items"].Methods["get"]
		assert.Equal(t, "items/{id}", get.Path)
		assert.Equal(t, []string{"id"}, get.ParameterOrder)
		assert.Equal(t, "path", get.Parameters["id"].Location)
		assert.Nil(t, get.Request)
	})

	t.Run("RPC", func(t *testing.T) {
		raw, err := s.GenerateDiscoveryDoc(ctx, req, FormatRPC)
		require.NoError(t, err)

		var d Description
		require.NoError(t, json.Unmarshal(raw, &d))
		assert.Equal(t, KindRPC, d.Kind)
		assert.Equal(t, "http://localhost:8080/_ah/api/rpc", d.RPCURL)
		assert.Equal(t, "/_ah/api/rpc", d.RPCPath)
		assert.Contains(t, d.Methods, "aservice.items.get")
		assert.Empty(t, d.Methods["aservice.items.get"].Path)
	})

	t.Run("Formato inválido", func(t *testing.T) {
		_, err := s.GenerateDiscoveryDoc(ctx, req, "soap")
		assert.True(t, errors.Is(err, ErrUnknownFormat))
	})

	t.Run("API inexistente", func(t *testing.T) {
		bad := req
		bad.API = "other"
		_, err := s.GenerateDiscoveryDoc(ctx, bad, FormatRest)
		assert.True(t, errors.Is(err, apiconfig.ErrAPINotFound))
	})
}

func TestGenerateDirectory(t *testing.T) {
	server := newBackend(t)
	require.NoError(t, server.RegisterConfig(config.APIConf{
		Name: "aservice", Version: "v4",
		Methods: []config.MethodConf{{Name: "aservice.ping", Path: "ping", HTTPMethod: "GET"}},
	}, map[string]backend.Handler{"aservice.ping": noop}))

	manager := apiconfig.NewManager()
	require.NoError(t, manager.ProcessAPIs(server.APIs()))
	s := NewService(manager, server, BaseURLResolver{}, nil)

	raw, err := s.GenerateDirectory(context.Background(), ConfigRequest{Server: "localhost", Port: "80", Scheme: "http"})
	require.NoError(t, err)

	var list DirectoryList
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Equal(t, KindDirectory, list.Kind)
	require.Len(t, list.Items, 2)

	assert.Equal(t, "aservice:v3", list.Items[0].ID)
	assert.False(t, list.Items[0].Preferred)
	assert.Equal(t, "http://localhost/_ah/api/discovery/v1/apis/aservice/v3/rest", list.Items[0].DiscoveryRestURL)
	assert.Equal(t, "./apis/aservice/v3/rest", list.Items[0].DiscoveryLink)
	assert.True(t, list.Items[1].Preferred)
}

func TestBuildDirectory_PreferredNumericVersion(t *testing.T) {
	apis := []apiconfig.API{
		{Name: "items", Version: "v10"},
		{Name: "items", Version: "v2"},
		{Name: "items", Version: "v9beta"},
		{Name: "parts", Version: "alpha"},
		{Name: "parts", Version: "v1"},
	}
	list := BuildDirectory(apis, "http://localhost/_ah/api")
	require.Len(t, list.Items, 5)

	preferred := map[string]bool{}
	for _, item := range list.Items {
		preferred[item.ID] = item.Preferred
	}
	assert.Equal(t, map[string]bool{
		"items:v10": true, "items:v2": false, "items:v9beta": false,
		"parts:alpha": false, "parts:v1": true,
	}, preferred)

	assert.True(t, versionLess("v2", "v10"))
	assert.False(t, versionLess("v10", "v2"))
	assert.True(t, versionLess("v1", "v1beta"))
}

// countingStore conta as gravações para verificar cache e singleflight.
type countingStore struct {
	cache.Store
	sets atomic.Int32
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte) error {
	c.sets.Add(1)
	return c.Store.Set(ctx, key, value)
}

func TestGenerateDiscoveryDoc_Cached(t *testing.T) {
	store := &countingStore{Store: cache.NewMemoryStore(16, time.Minute)}
	s := newService(t, config.Production, store)
	ctx := context.Background()
	req := ConfigRequest{Server: "localhost", Port: "8080", Scheme: "http", API: "aservice", Version: "v3"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GenerateDiscoveryDoc(ctx, req, FormatRest)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	first := store.sets.Load()
	assert.GreaterOrEqual(t, first, int32(1))

	_, err := s.GenerateDiscoveryDoc(ctx, req, FormatRest)
	require.NoError(t, err)
	assert.Equal(t, first, store.sets.Load(), "segunda chamada deve vir do cache")

	// Outro root gera outra entrada
	other := req
	other.Port = "9090"
	_, err = s.GenerateDiscoveryDoc(ctx, other, FormatRest)
	require.NoError(t, err)
	assert.Equal(t, first+1, store.sets.Load())

	require.NoError(t, s.Invalidate(ctx))
	_, err = s.GenerateDiscoveryDoc(ctx, req, FormatRest)
	require.NoError(t, err)
	assert.Equal(t, first+2, store.sets.Load())
}
