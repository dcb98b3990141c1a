package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/raywall/fast-endpoints/pkg/engine"
	"github.com/raywall/fast-endpoints/pkg/observability"
	"github.com/rs/zerolog"
)

const (
	HeaderCorrelationID = "x-correlation-id"
	HeaderLatency       = "x-latency-ms"
)

type ctxKey string

const ctxKeyCorrID ctxKey = "correlation_id"

// CorrelationID devolve o id da requisição anexado pelo middleware.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCorrID).(string)
	return id
}

// ServerOptions define os timeouts do http.Server. Zero usa o default.
type ServerOptions struct {
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

func (o ServerOptions) withDefaults() ServerOptions {
	if o.ReadHeaderTimeout == 0 {
		o.ReadHeaderTimeout = 5 * time.Second
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
	return o
}

// NewHTTPHandler monta o handler completo do servidor: front door, SPI e,
// se habilitado, o scrape do Prometheus.
func NewHTTPHandler(svc *engine.ServiceEngine) http.Handler {
	mux := http.NewServeMux()

	if h, ok := svc.MetricsHandler(); ok {
		path := svc.Config().Server.Metrics.Prometheus.Path
		if path == "" {
			path = observability.DefaultPrometheusPath
		}
		svc.Logger.Info().Msgf("Registrando métricas Prometheus em %s", path)
		mux.Handle(path, h)
	}

	return ObservabilityMiddleware(svc.Logger, svc.Handler(mux))
}

// StartHTTPServer sobe o servidor e bloqueia até ctx ser cancelado, quando
// faz o shutdown gracioso.
func StartHTTPServer(ctx context.Context, svc *engine.ServiceEngine) error {
	return startHTTPServer(ctx, svc, fmt.Sprintf(":%d", svc.Config().Server.Port), ServerOptions{})
}

func startHTTPServer(ctx context.Context, svc *engine.ServiceEngine, addr string, opts ServerOptions) error {
	opts = opts.withDefaults()
	timeout := svc.Config().Server.GetTimeout()

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(svc),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       opts.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return svc.Logger.WithContext(context.Background()) },
	}

	errCh := make(chan error, 1)
	go func() {
		svc.Logger.Info().Msgf("Servidor HTTP ouvindo em %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	svc.Logger.Info().Msg("Encerrando servidor HTTP")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if flushErr := svc.Shutdown(shutdownCtx); flushErr != nil {
		svc.Logger.Warn().Err(flushErr).Msg("falha ao descarregar métricas")
	}
	return err
}

// --- MIDDLEWARE DE OBSERVABILIDADE ---
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	startTime   time.Time
	wroteHeader bool
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	duration := time.Since(rw.startTime)
	rw.Header().Set(HeaderLatency, fmt.Sprintf("%d", duration.Milliseconds()))
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ObservabilityMiddleware anexa correlation id e logger contextual e loga o
// fim de cada requisição. O id também segue para os targets proxied.
func ObservabilityMiddleware(base zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		corrID := r.Header.Get(HeaderCorrelationID)
		if corrID == "" {
			corrID = uuid.NewString()
			r.Header.Set(HeaderCorrelationID, corrID)
		}
		w.Header().Set(HeaderCorrelationID, corrID)

		logger := base.With().Str("correlation_id", corrID).Logger()
		ctx := logger.WithContext(r.Context())
		ctx = context.WithValue(ctx, ctxKeyCorrID, corrID)

		wrapper := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			startTime:      start,
		}

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Msg("request completed")
	})
}
