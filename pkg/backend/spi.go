package backend

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// GetAPIConfigsMethod é o método SPI que publica as configurações.
const GetAPIConfigsMethod = "BackendService.getApiConfigs"

// APIConfigsResponse é o corpo de BackendService.getApiConfigs: cada item é
// um documento de configuração serializado como string JSON.
type APIConfigsResponse struct {
	Items []string `json:"items"`
}

// RootFunc calcula o root publicado nos documentos a partir da requisição.
type RootFunc func(r *http.Request) string

// RegistryHandler atende POST {registry_path}/BackendService.getApiConfigs.
func RegistryHandler(s *Server, root RootFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		base := ""
		if root != nil {
			base = root(r)
		}

		resp := APIConfigsResponse{Items: []string{}}
		for _, doc := range s.GetAPIConfigs(base) {
			raw, err := json.Marshal(doc)
			if err != nil {
				log.Ctx(r.Context()).Error().Err(err).Str("api", doc.Name).Msg("falha ao serializar config")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			resp.Items = append(resp.Items, string(raw))
		}

		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
