package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// UserAgent identifica as chamadas feitas pelo front door ao backend.
const UserAgent = "FastEndpoints/Proxy"

// Regex para parâmetros na URL de destino (ex: http://svc/items/{id})
var targetParamRegex = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// Response representa a resposta do serviço downstream.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Client reutilizável para pooling de conexões
var client = &http.Client{
	Timeout: 30 * time.Second,
}

// Request descreve uma chamada a ser encaminhada.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
	Query   url.Values
	Timeout string
}

// ExpandURL substitui {param} na URL de destino pelos parâmetros de path
// (com escape). Parâmetros sem valor permanecem no texto.
func ExpandURL(target string, params map[string]string) string {
	return targetParamRegex.ReplaceAllStringFunc(target, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := params[name]; ok {
			return url.PathEscape(v)
		}
		return match
	})
}

// ForwardRequest envia a requisição para o serviço de destino.
func ForwardRequest(ctx context.Context, r Request) (*Response, error) {
	// 1. Timeout específico se fornecido
	reqCtx := ctx
	if r.Timeout != "" {
		if dur, err := time.ParseDuration(r.Timeout); err == nil {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, dur)
			defer cancel()
		}
	}

	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	// 2. Prepara Request
	req, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar forward request: %w", err)
	}

	// 3. Injeta Headers
	req.Header.Set("User-Agent", UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	// 4. Executa
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("falha na conexão com target (%s): %w", r.URL, err)
	}
	defer resp.Body.Close()

	// 5. Lê Resposta
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler resposta do target: %w", err)
	}

	// 6. Extrai Headers de Resposta
	respHeaders := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = v[0]
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    respHeaders,
		Body:       respBody,
	}, nil
}
