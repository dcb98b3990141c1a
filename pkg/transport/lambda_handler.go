package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/raywall/fast-endpoints/pkg/engine"
	"github.com/rs/zerolog/log"
)

// LambdaHandler adapta eventos do API Gateway para o mesmo handler HTTP do
// servidor local; roteamento, SPI e observabilidade são idênticos.
type LambdaHandler struct {
	handler http.Handler
}

// NewLambdaHandler cria uma nova instância do adaptador
func NewLambdaHandler(svc *engine.ServiceEngine) *LambdaHandler {
	return &LambdaHandler{handler: NewHTTPHandler(svc)}
}

// Handle processa a requisição Lambda
func (h *LambdaHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// 1. Evento -> http.Request
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("path", req.Path).Msg("evento API Gateway inválido")
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":{"code":400,"message":"invalid request"}}`,
		}, nil
	}

	// 2. Executa o front door
	w := newLambdaResponseWriter()
	h.handler.ServeHTTP(w, httpReq)

	// 3. http.ResponseWriter -> resposta do API Gateway
	return w.response(), nil
}

func toHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	method := req.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}

	query := url.Values{}
	for k, vs := range req.MultiValueQueryStringParameters {
		query[k] = append([]string(nil), vs...)
	}
	for k, v := range req.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}
	u := url.URL{Path: req.Path, RawQuery: query.Encode()}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("body base64 inválido: %w", err)
		}
		body = decoded
	}

	r, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, vs := range req.MultiValueHeaders {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	for k, v := range req.Headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}

	if host := r.Header.Get("Host"); host != "" {
		r.Host = host
	} else if req.RequestContext.DomainName != "" {
		r.Host = req.RequestContext.DomainName
	}
	// API Gateway sempre termina TLS
	if r.Header.Get("X-Forwarded-Proto") == "" {
		r.Header.Set("X-Forwarded-Proto", "https")
	}
	r.RemoteAddr = req.RequestContext.Identity.SourceIP
	r.ContentLength = int64(len(body))
	return r, nil
}

// lambdaResponseWriter acumula a resposta em memória.
type lambdaResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newLambdaResponseWriter() *lambdaResponseWriter {
	return &lambdaResponseWriter{header: make(http.Header)}
}

func (w *lambdaResponseWriter) Header() http.Header {
	return w.header
}

func (w *lambdaResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *lambdaResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *lambdaResponseWriter) response() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	single := make(map[string]string, len(w.header))
	for k, vs := range w.header {
		if len(vs) > 0 {
			single[k] = strings.Join(vs, ", ")
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           single,
		MultiValueHeaders: map[string][]string(w.header),
		Body:              w.body.String(),
	}
}
