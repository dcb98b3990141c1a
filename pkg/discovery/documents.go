package discovery

import (
	"sort"
	"strconv"
	"strings"

	"github.com/raywall/fast-endpoints/pkg/apiconfig"
)

const (
	KindRest      = "discovery#restDescription"
	KindRPC       = "discovery#rpcDescription"
	KindDirectory = "discovery#directoryList"
	KindItem      = "discovery#directoryItem"

	discoveryVersion = "v1"
)

// Parameter descreve um parâmetro no documento de discovery.
type Parameter struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Location    string `json:"location,omitempty"`
	Default     string `json:"default,omitempty"`
}

// Method é um método no documento de discovery.
type Method struct {
	ID             string               `json:"id"`
	Path           string               `json:"path,omitempty"`
	HTTPMethod     string               `json:"httpMethod,omitempty"`
	Description    string               `json:"description,omitempty"`
	Parameters     map[string]Parameter `json:"parameters,omitempty"`
	ParameterOrder []string             `json:"parameterOrder,omitempty"`
	Request        *SchemaRef           `json:"request,omitempty"`
	Response       *SchemaRef           `json:"response,omitempty"`
}

type SchemaRef struct {
	Ref string `json:"$ref"`
}

// Resource agrupa métodos pelo segmento intermediário do nome
// ("aservice.items.get" -> resources.items.methods.get).
type Resource struct {
	Methods   map[string]Method   `json:"methods,omitempty"`
	Resources map[string]Resource `json:"resources,omitempty"`
}

// Description é o documento de discovery (rest ou rpc) de uma API.
type Description struct {
	Kind             string               `json:"kind"`
	DiscoveryVersion string               `json:"discoveryVersion"`
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Version          string               `json:"version"`
	Title            string               `json:"title,omitempty"`
	Description      string               `json:"description,omitempty"`
	Protocol         string               `json:"protocol"`
	RootURL          string               `json:"rootUrl"`
	ServicePath      string               `json:"servicePath,omitempty"`
	BaseURL          string               `json:"baseUrl,omitempty"`
	BasePath         string               `json:"basePath,omitempty"`
	RPCURL           string               `json:"rpcUrl,omitempty"`
	RPCPath          string               `json:"rpcPath,omitempty"`
	BatchPath        string               `json:"batchPath,omitempty"`
	Parameters       map[string]Parameter `json:"parameters"`
	Schemas          map[string]Schema    `json:"schemas"`
	Methods          map[string]Method    `json:"methods,omitempty"`
	Resources        map[string]Resource  `json:"resources,omitempty"`
}

// Schema é a descrição mínima de um corpo JSON livre.
type Schema struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	AdditionalProperties *struct {
		Type string `json:"type"`
	} `json:"additionalProperties,omitempty"`
}

// DirectoryItem é a entrada de uma API na listagem.
type DirectoryItem struct {
	Kind             string `json:"kind"`
	ID               string `json:"id"`
	Name             string `json:"name"`
	Version          string `json:"version"`
	Title            string `json:"title,omitempty"`
	Description      string `json:"description,omitempty"`
	DiscoveryRestURL string `json:"discoveryRestUrl"`
	DiscoveryLink    string `json:"discoveryLink"`
	Preferred        bool   `json:"preferred"`
}

// DirectoryList é a listagem das APIs publicadas.
type DirectoryList struct {
	Kind             string          `json:"kind"`
	DiscoveryVersion string          `json:"discoveryVersion"`
	Items            []DirectoryItem `json:"items"`
}

// standardParameters são aceitos por todos os métodos.
func standardParameters() map[string]Parameter {
	return map[string]Parameter{
		"alt":         {Type: "string", Description: "Data format for the response.", Location: "query", Default: "json"},
		"fields":      {Type: "string", Description: "Selector specifying which fields to include in a partial response.", Location: "query"},
		"prettyPrint": {Type: "boolean", Description: "Returns response with indentations and line breaks.", Location: "query", Default: "true"},
		"quotaUser":   {Type: "string", Description: "Available to use for quota purposes for server-side applications.", Location: "query"},
		"userIp":      {Type: "string", Description: "IP address of the site where the request originates.", Location: "query"},
	}
}

func jsonObjectSchema() map[string]Schema {
	s := Schema{ID: "JsonObject", Type: "object"}
	s.AdditionalProperties = &struct {
		Type string `json:"type"`
	}{Type: "any"}
	return map[string]Schema{"JsonObject": s}
}

func newDescription(doc apiconfig.Document, kind, protocol string) Description {
	return Description{
		Kind:             kind,
		DiscoveryVersion: discoveryVersion,
		ID:               doc.Name + ":" + doc.Version,
		Name:             doc.Name,
		Version:          doc.Version,
		Title:            doc.Title,
		Description:      doc.Description,
		Protocol:         protocol,
		RootURL:          strings.TrimRight(doc.Root, "/") + "/",
		Parameters:       standardParameters(),
		Schemas:          jsonObjectSchema(),
	}
}

// BuildRestDescription converte o documento de configuração em discovery REST.
func BuildRestDescription(doc apiconfig.Document) Description {
	d := newDescription(doc, KindRest, "rest")
	servicePath := doc.Name + "/" + doc.Version + "/"
	d.ServicePath = servicePath
	d.BaseURL = d.RootURL + servicePath
	d.BatchPath = "batch"
	if i := strings.Index(doc.Root, "://"); i >= 0 {
		if j := strings.Index(doc.Root[i+3:], "/"); j >= 0 {
			d.BasePath = doc.Root[i+3+j:] + "/" + servicePath
		}
	}

	for _, name := range doc.MethodNames() {
		md := doc.Methods[name]
		m := methodFrom(name, md, true)

		parts := strings.Split(name, ".")
		if len(parts) > 1 && parts[0] == doc.Name {
			parts = parts[1:]
		}
		insertMethod(&d, parts, m)
	}
	return d
}

// BuildRPCDescription converte o documento de configuração em discovery RPC.
func BuildRPCDescription(doc apiconfig.Document) Description {
	d := newDescription(doc, KindRPC, "rpc")
	d.RPCURL = d.RootURL + "rpc"
	if i := strings.Index(doc.Root, "://"); i >= 0 {
		if j := strings.Index(doc.Root[i+3:], "/"); j >= 0 {
			d.RPCPath = doc.Root[i+3+j:] + "/rpc"
		}
	}
	d.Methods = make(map[string]Method, len(doc.Methods))
	for _, name := range doc.MethodNames() {
		d.Methods[name] = methodFrom(name, doc.Methods[name], false)
	}
	return d
}

func methodFrom(name string, md apiconfig.MethodDocument, rest bool) Method {
	m := Method{
		ID:          name,
		Description: md.Description,
		Response:    &SchemaRef{Ref: "JsonObject"},
	}
	if rest {
		m.Path = md.Path
		m.HTTPMethod = md.HTTPMethod
	}
	if md.Request.Body != "empty" {
		m.Request = &SchemaRef{Ref: "JsonObject"}
	}
	if len(md.Request.Parameters) > 0 {
		m.Parameters = make(map[string]Parameter, len(md.Request.Parameters))
		for pname, p := range md.Request.Parameters {
			param := Parameter{Type: p.Type, Required: p.Required}
			if rest {
				param.Location = "path"
			}
			m.Parameters[pname] = param
			if p.Required {
				m.ParameterOrder = append(m.ParameterOrder, pname)
			}
		}
		sort.Strings(m.ParameterOrder)
	}
	return m
}

func insertMethod(d *Description, parts []string, m Method) {
	if len(parts) == 1 {
		if d.Methods == nil {
			d.Methods = make(map[string]Method)
		}
		d.Methods[parts[0]] = m
		return
	}
	if d.Resources == nil {
		d.Resources = make(map[string]Resource)
	}
	d.Resources[parts[0]] = insertResource(d.Resources[parts[0]], parts[1:], m)
}

func insertResource(r Resource, parts []string, m Method) Resource {
	if len(parts) == 1 {
		if r.Methods == nil {
			r.Methods = make(map[string]Method)
		}
		r.Methods[parts[0]] = m
		return r
	}
	if r.Resources == nil {
		r.Resources = make(map[string]Resource)
	}
	r.Resources[parts[0]] = insertResource(r.Resources[parts[0]], parts[1:], m)
	return r
}

// BuildDirectory lista as APIs. A versão preferida de cada nome é a última
// na ordem de APIs (ordenadas por nome e versão).
func BuildDirectory(apis []apiconfig.API, root string) DirectoryList {
	root = strings.TrimRight(root, "/")
	list := DirectoryList{Kind: KindDirectory, DiscoveryVersion: discoveryVersion, Items: []DirectoryItem{}}

	latest := make(map[string]string)
	for _, api := range apis {
		if cur, ok := latest[api.Name]; !ok || versionLess(cur, api.Version) {
			latest[api.Name] = api.Version
		}
	}

	for _, api := range apis {
		suffix := "apis/" + api.Name + "/" + api.Version + "/rest"
		list.Items = append(list.Items, DirectoryItem{
			Kind:             KindItem,
			ID:               api.Name + ":" + api.Version,
			Name:             api.Name,
			Version:          api.Version,
			Title:            api.Title,
			Description:      api.Description,
			DiscoveryRestURL: root + "/discovery/v1/" + suffix,
			DiscoveryLink:    "./" + suffix,
			Preferred:        latest[api.Name] == api.Version,
		})
	}
	return list
}

// versionLess compara versões no formato vN[sufixo] pelo número (v2 < v10).
// Sem número, ou com números iguais, vale a ordem lexicográfica.
func versionLess(a, b string) bool {
	na, okA := versionNumber(a)
	nb, okB := versionNumber(b)
	if okA && okB && na != nb {
		return na < nb
	}
	if okA != okB {
		return !okA
	}
	return a < b
}

func versionNumber(v string) (int, bool) {
	v = strings.TrimPrefix(strings.ToLower(v), "v")
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(v[:end])
	return n, err == nil
}
