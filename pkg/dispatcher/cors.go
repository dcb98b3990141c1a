package dispatcher

import (
	"net/http"
	"strconv"
	"strings"
)

var defaultCORSMethods = []string{"DELETE", "GET", "PATCH", "POST", "PUT"}

func (d *Dispatcher) originAllowed(origin string) bool {
	allowed := d.opts.CORS.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// cors aplica os cabeçalhos CORS e responde preflights antes do roteamento.
func (d *Dispatcher) cors(next http.Handler) http.Handler {
	if !d.opts.CORS.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !d.originAllowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")

		if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
			next.ServeHTTP(w, r)
			return
		}

		callFrom(r.Context()).transport = "preflight"

		methods := d.manager.AllowedMethods(strings.TrimPrefix(r.URL.EscapedPath(), d.basePath))
		if len(methods) == 0 {
			methods = defaultCORSMethods
		}
		h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))

		if len(d.opts.CORS.AllowedHeaders) > 0 {
			h.Set("Access-Control-Allow-Headers", strings.Join(d.opts.CORS.AllowedHeaders, ", "))
		} else if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
		if d.opts.CORS.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(d.opts.CORS.MaxAge))
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
