package apiconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	ErrAPINotFound      = errors.New("api not found")
	ErrMethodNotFound   = errors.New("method not found")
	ErrDuplicateMethod  = errors.New("duplicate method")
	ErrAmbiguousMethod  = errors.New("ambiguous method: more than one api or version")
	ErrInvalidAPIConfig = errors.New("invalid api config")
)

// Match é o resultado de uma busca REST.
type Match struct {
	API    Key
	Method Method
	// Params contém os parâmetros de path já decodificados.
	Params map[string]string
}

type restEntry struct {
	key      Key
	method   Method
	re       *regexp.Regexp
	params   []string
	segments []string
}

type rpcKey struct {
	api     string
	name    string
	version string
}

// Manager é o registro de APIs: mantém os descritores e resolve chamadas
// REST (path + verbo) e JSON-RPC (nome + versão) para um método.
// Seguro para uso concorrente.
type Manager struct {
	mu   sync.RWMutex
	apis map[Key]API
	rest []restEntry
	rpc  map[rpcKey]restEntry
}

// NewManager cria um registro vazio.
func NewManager() *Manager {
	return &Manager{
		apis: make(map[Key]API),
		rpc:  make(map[rpcKey]restEntry),
	}
}

// ProcessAPIs substitui todo o conteúdo do registro. Em caso de erro o
// registro anterior é mantido.
func (m *Manager) ProcessAPIs(apis []API) error {
	next := NewManager()
	for _, api := range apis {
		if err := next.add(api); err != nil {
			return err
		}
	}
	next.sortRoutes()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.apis, m.rest, m.rpc = next.apis, next.rest, next.rpc
	return nil
}

// ProcessAPIConfigs alimenta o registro a partir da resposta de
// BackendService.getApiConfigs (uma lista de documentos JSON).
func (m *Manager) ProcessAPIConfigs(items []string) error {
	apis := make([]API, 0, len(items))
	for i, item := range items {
		var doc Document
		if err := json.Unmarshal([]byte(item), &doc); err != nil {
			return fmt.Errorf("%w: item %d: %v", ErrInvalidAPIConfig, i, err)
		}
		if doc.Name == "" || doc.Version == "" {
			return fmt.Errorf("%w: item %d sem name/version", ErrInvalidAPIConfig, i)
		}
		apis = append(apis, FromDocument(doc))
	}
	return m.ProcessAPIs(apis)
}

// Register adiciona (ou substitui) uma única API.
func (m *Manager) Register(api API) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := NewManager()
	for k, a := range m.apis {
		if k == api.Key() {
			continue
		}
		if err := next.add(a); err != nil {
			return err
		}
	}
	if err := next.add(api); err != nil {
		return err
	}
	next.sortRoutes()

	m.apis, m.rest, m.rpc = next.apis, next.rest, next.rpc
	return nil
}

func (m *Manager) add(api API) error {
	key := api.Key()
	if _, exists := m.apis[key]; exists {
		return fmt.Errorf("%w: api %s registrada duas vezes", ErrDuplicateMethod, key)
	}

	seen := make(map[string]bool)
	for _, method := range api.Methods {
		route := method.HTTPMethod + " " + normalizeSegments(method.Path)
		if seen[route] {
			return fmt.Errorf("%w: %s %s em %s", ErrDuplicateMethod, method.HTTPMethod, method.Path, key)
		}
		seen[route] = true

		entry, err := compileEntry(key, method)
		if err != nil {
			return err
		}

		rk := rpcKey{api: api.Name, name: method.Name, version: api.Version}
		if _, exists := m.rpc[rk]; exists {
			return fmt.Errorf("%w: %s em %s", ErrDuplicateMethod, method.Name, key)
		}
		m.rpc[rk] = entry
		m.rest = append(m.rest, entry)
	}

	m.apis[key] = api
	return nil
}

func compileEntry(key Key, method Method) (restEntry, error) {
	full := key.Name + "/" + key.Version
	if method.Path != "" {
		full += "/" + method.Path
	}
	segments := strings.Split(full, "/")

	var pattern strings.Builder
	pattern.WriteString("^")
	var params []string
	for i, seg := range segments {
		if i > 0 {
			pattern.WriteString("/")
		}
		if isParam(seg) {
			params = append(params, seg[1:len(seg)-1])
			pattern.WriteString("([^/]+)")
			continue
		}
		pattern.WriteString(regexp.QuoteMeta(seg))
	}
	pattern.WriteString("/?$")

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return restEntry{}, fmt.Errorf("%w: path '%s': %v", ErrInvalidAPIConfig, method.Path, err)
	}
	return restEntry{key: key, method: method, re: re, params: params, segments: segments}, nil
}

// sortRoutes ordena as rotas para que segmentos literais tenham prioridade
// sobre parâmetros na mesma posição.
func (m *Manager) sortRoutes() {
	sort.SliceStable(m.rest, func(i, j int) bool {
		a, b := m.rest[i].segments, m.rest[j].segments
		for k := 0; k < len(a) && k < len(b); k++ {
			pa, pb := isParam(a[k]), isParam(b[k])
			if pa != pb {
				return !pa
			}
			if !pa && a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) > len(b)
	})
}

// LookupRESTMethod resolve path (relativo ao base path, ex:
// "aservice/v3/items/10") e verbo para um método.
func (m *Manager) LookupRESTMethod(path, httpMethod string) (*Match, error) {
	path = strings.Trim(path, "/")
	httpMethod = strings.ToUpper(httpMethod)

	m.mu.RLock()
	defer m.mu.RUnlock()

	pathMatched := false
	for _, entry := range m.rest {
		groups := entry.re.FindStringSubmatch(path)
		if groups == nil {
			continue
		}
		pathMatched = true
		if entry.method.HTTPMethod != httpMethod {
			continue
		}

		params := make(map[string]string, len(entry.params))
		for i, name := range entry.params {
			value, err := url.PathUnescape(groups[i+1])
			if err != nil {
				value = groups[i+1]
			}
			params[name] = value
		}
		return &Match{API: entry.key, Method: entry.method, Params: params}, nil
	}

	if pathMatched {
		return nil, fmt.Errorf("%w: %s não aceita %s", ErrMethodNotFound, path, httpMethod)
	}
	return nil, fmt.Errorf("%w: %s %s", ErrMethodNotFound, httpMethod, path)
}

// AllowedMethods devolve os verbos aceitos por um path (usado em preflight CORS).
func (m *Manager) AllowedMethods(path string) []string {
	path = strings.Trim(path, "/")

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, entry := range m.rest {
		if entry.re.MatchString(path) && !seen[entry.method.HTTPMethod] {
			seen[entry.method.HTTPMethod] = true
			out = append(out, entry.method.HTTPMethod)
		}
	}
	sort.Strings(out)
	return out
}

// LookupRPCMethod resolve um método JSON-RPC. O nome precisa ser único
// entre as APIs registradas (na versão informada, quando houver).
func (m *Manager) LookupRPCMethod(name, version string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []restEntry
	for k, entry := range m.rpc {
		if k.name == name && (version == "" || k.version == version) {
			found = append(found, entry)
		}
	}
	switch len(found) {
	case 0:
		if version != "" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrMethodNotFound, name, version)
		}
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	case 1:
		return &Match{API: found[0].key, Method: found[0].method, Params: map[string]string{}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousMethod, name)
	}
}

// Lookup devolve a API registrada para (nome, versão).
func (m *Manager) Lookup(name, version string) (API, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	api, ok := m.apis[Key{Name: name, Version: version}]
	return api, ok
}

// APIs devolve todas as APIs ordenadas por nome e versão.
func (m *Manager) APIs() []API {
	m.mu.RLock()
	out := make([]API, 0, len(m.apis))
	for _, api := range m.apis {
		out = append(out, api)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// FromDocument converte um documento de configuração de volta em descritor.
func FromDocument(doc Document) API {
	api := API{
		Name:        doc.Name,
		Version:     doc.Version,
		Title:       doc.Title,
		Description: doc.Description,
	}
	if u, err := url.Parse(doc.Root); err == nil {
		api.Hostname = u.Host
	}
	for _, name := range doc.MethodNames() {
		md := doc.Methods[name]
		method := NewMethod(doc.Name, name, md.Path, md.HTTPMethod, md.Description)
		if md.RosyMethod != "" {
			method.RosyMethod = md.RosyMethod
		}
		api.Methods = append(api.Methods, method)
	}
	return api
}

func isParam(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}

func normalizeSegments(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		if isParam(s) {
			segments[i] = "{}"
		}
	}
	return strings.Join(segments, "/")
}
