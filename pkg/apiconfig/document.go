package apiconfig

import (
	"encoding/json"
	"fmt"
	"sort"
)

// AdapterType é o tipo de adaptador publicado no documento de configuração.
const AdapterType = "lily"

// DefaultDeadline é o prazo (segundos) anunciado para o backend.
const DefaultDeadline = 65.0

// Document é o documento de configuração de uma API, no formato servido por
// BackendService.getApiConfigs.
type Document struct {
	Extends        string                    `json:"extends"`
	Abstract       bool                      `json:"abstract"`
	Root           string                    `json:"root"`
	Name           string                    `json:"name"`
	Version        string                    `json:"version"`
	Title          string                    `json:"title,omitempty"`
	Description    string                    `json:"description,omitempty"`
	DefaultVersion bool                      `json:"defaultVersion"`
	Adapter        Adapter                   `json:"adapter"`
	Methods        map[string]MethodDocument `json:"methods"`
	Descriptor     Descriptor                `json:"descriptor"`
}

// Adapter aponta para onde o front door deve encaminhar as chamadas.
type Adapter struct {
	BNS      string  `json:"bns"`
	Type     string  `json:"type"`
	Deadline float64 `json:"deadline"`
}

// MethodDocument é a entrada de um método em Document.Methods.
type MethodDocument struct {
	Path        string           `json:"path"`
	HTTPMethod  string           `json:"httpMethod"`
	RosyMethod  string           `json:"rosyMethod"`
	Description string           `json:"description,omitempty"`
	Request     RequestDocument  `json:"request"`
	Response    ResponseDocument `json:"response"`
}

type RequestDocument struct {
	Body       string                       `json:"body"`
	Parameters map[string]ParameterDocument `json:"parameters,omitempty"`
}

type ResponseDocument struct {
	Body string `json:"body"`
}

type ParameterDocument struct {
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Descriptor lista os schemas e métodos expostos.
type Descriptor struct {
	Methods map[string]DescriptorMethod `json:"methods"`
}

type DescriptorMethod struct {
	Request  *DescriptorRef `json:"request,omitempty"`
	Response *DescriptorRef `json:"response,omitempty"`
}

type DescriptorRef struct {
	Ref string `json:"$ref"`
}

// Generator produz os documentos de configuração.
type Generator struct{}

// NewGenerator cria um gerador de documentos.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate monta o documento de uma API usando root como base URL.
// O root também é publicado em adapter.bns.
func (g *Generator) Generate(api API, root string) Document {
	doc := Document{
		Extends:        "thirdParty.api",
		Root:           root,
		Name:           api.Name,
		Version:        api.Version,
		Title:          api.Title,
		Description:    api.Description,
		DefaultVersion: true,
		Adapter: Adapter{
			BNS:      root,
			Type:     AdapterType,
			Deadline: DefaultDeadline,
		},
		Methods:    make(map[string]MethodDocument, len(api.Methods)),
		Descriptor: Descriptor{Methods: make(map[string]DescriptorMethod, len(api.Methods))},
	}

	for _, m := range api.Methods {
		md := MethodDocument{
			Path:        m.Path,
			HTTPMethod:  m.HTTPMethod,
			RosyMethod:  m.RosyMethod,
			Description: m.Description,
			Request:     RequestDocument{Body: "autoTemplate(backendRequest)"},
			Response:    ResponseDocument{Body: "autoTemplate(backendResponse)"},
		}
		if m.HTTPMethod == "GET" || m.HTTPMethod == "DELETE" {
			md.Request.Body = "empty"
		}
		if len(m.Parameters) > 0 {
			md.Request.Parameters = make(map[string]ParameterDocument, len(m.Parameters))
			for _, p := range m.Parameters {
				md.Request.Parameters[p.Name] = ParameterDocument{Type: "string", Required: p.Required}
			}
		}
		doc.Methods[m.Name] = md
		doc.Descriptor.Methods[m.RosyMethod] = DescriptorMethod{
			Response: &DescriptorRef{Ref: "JsonObject"},
		}
	}

	return doc
}

// PrettyJSON serializa o documento com indentação (chaves ordenadas pelo encoder).
func (d Document) PrettyJSON() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", " ")
	if err != nil {
		return nil, fmt.Errorf("erro ao serializar documento '%s': %w", d.Name, err)
	}
	return out, nil
}

// MethodNames devolve os nomes dos métodos em ordem alfabética.
func (d Document) MethodNames() []string {
	names := make([]string, 0, len(d.Methods))
	for name := range d.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
