package apiconfig

import (
	"strings"

	"github.com/raywall/fast-endpoints/pkg/config"
)

// API descreve uma API publicada: nome, versão e seus métodos.
type API struct {
	Name        string
	Version     string
	Hostname    string
	Title       string
	Description string
	Methods     []Method
}

// Method descreve um método de uma API.
type Method struct {
	// Name é o nome público do método (ex: "aservice.items.get").
	Name string
	// Path é o template relativo ao base path da API (ex: "items/{id}").
	Path string
	// HTTPMethod é o verbo HTTP em caixa alta.
	HTTPMethod string
	// RosyMethod identifica o handler no backend ("Service.Method").
	RosyMethod  string
	Description string
	Parameters  []Parameter
}

// Parameter é um parâmetro de path declarado no template.
type Parameter struct {
	Name     string
	Location string
	Required bool
}

// Key identifica uma API por (nome, versão).
type Key struct {
	Name    string
	Version string
}

func (k Key) String() string {
	return k.Name + ":" + k.Version
}

func (a API) Key() Key {
	return Key{Name: a.Name, Version: a.Version}
}

// FromConfig converte a declaração YAML em descritor.
func FromConfig(c config.APIConf) API {
	api := API{
		Name:        c.Name,
		Version:     c.Version,
		Hostname:    c.Hostname,
		Title:       c.Title,
		Description: c.Description,
	}
	for _, m := range c.Methods {
		api.Methods = append(api.Methods, NewMethod(c.Name, m.Name, m.Path, m.HTTPMethod, m.Description))
	}
	return api
}

// NewMethod monta um Method derivando RosyMethod e parâmetros do template.
func NewMethod(apiName, name, path, httpMethod, description string) Method {
	m := Method{
		Name:        name,
		Path:        strings.Trim(path, "/"),
		HTTPMethod:  strings.ToUpper(httpMethod),
		RosyMethod:  RosyMethodName(apiName, name),
		Description: description,
	}
	for _, p := range config.PathParams(m.Path) {
		m.Parameters = append(m.Parameters, Parameter{Name: p, Location: "path", Required: true})
	}
	return m
}

// RosyMethodName gera o nome interno usado pelo backend, ex:
// ("aservice", "aservice.items.get") -> "AserviceApi.itemsGet".
func RosyMethodName(apiName, methodName string) string {
	parts := strings.Split(methodName, ".")
	if len(parts) > 1 && parts[0] == apiName {
		parts = parts[1:]
	}
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(capitalize(p))
	}
	return capitalize(apiName) + "Api." + b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
