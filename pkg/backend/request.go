package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Request é a chamada já roteada pelo dispatcher.
type Request struct {
	// Body é o corpo JSON decodificado (objeto vazio quando ausente).
	Body map[string]interface{}
	// RawBody é o corpo como recebido, repassado ao target nos métodos proxied.
	RawBody    []byte
	PathParams map[string]string
	Query      url.Values
	Headers    http.Header
}

// Handler implementa um método registrado em código.
type Handler func(ctx context.Context, req *Request) (any, error)

// NewRequest monta o Request validando que o corpo, se houver, é um objeto JSON.
func NewRequest(body []byte, params map[string]string, query url.Values, headers http.Header) (*Request, error) {
	req := &Request{
		Body:       map[string]interface{}{},
		RawBody:    body,
		PathParams: params,
		Query:      query,
		Headers:    headers,
	}
	if req.PathParams == nil {
		req.PathParams = map[string]string{}
	}
	if req.Query == nil {
		req.Query = url.Values{}
	}
	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req.Body); err != nil {
			return nil, BadRequest("Parse Error: corpo deve ser um objeto JSON")
		}
		if req.Body == nil {
			req.Body = map[string]interface{}{}
		}
	}
	return req, nil
}

// vars monta as variáveis disponíveis nas expressões CEL.
func (r *Request) vars() map[string]interface{} {
	query := make(map[string]string, len(r.Query))
	for k, v := range r.Query {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	header := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		if len(v) > 0 {
			header[http.CanonicalHeaderKey(k)] = v[0]
		}
	}
	return map[string]interface{}{
		"request": r.Body,
		"path":    r.PathParams,
		"query":   query,
		"header":  header,
	}
}
