package responder

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/raywall/fast-endpoints/pkg/backend"
)

// ContentType usado em todas as respostas do front door.
const ContentType = "application/json; charset=UTF-8"

// ErrorItem é uma entrada de error.errors.
type ErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ErrorDetail é o conteúdo de "error" no corpo de erro.
type ErrorDetail struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Errors  []ErrorItem `json:"errors"`
}

// ErrorEnvelope é o corpo de erro REST: {"error": {...}}.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// NewErrorDetail monta o detalhe a partir de um ServiceError.
func NewErrorDetail(se *backend.ServiceError) ErrorDetail {
	return ErrorDetail{
		Code:    se.Code,
		Message: se.Message,
		Errors: []ErrorItem{{
			Domain:  "global",
			Reason:  se.Reason,
			Message: se.Message,
		}},
	}
}

// Prettify indica se a resposta deve ser indentada (?prettyPrint=, default true).
func Prettify(r *http.Request) bool {
	v := r.URL.Query().Get("prettyPrint")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}

// Encode serializa body, indentado ou não. json.RawMessage é reindentado.
func Encode(body any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(body, "", " ")
	}
	return json.Marshal(body)
}

// WriteJSON escreve body com status. body nil com 200 vira 204.
func WriteJSON(w http.ResponseWriter, status int, body any, pretty bool) {
	if body == nil && status == http.StatusOK {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	payload, err := Encode(body, pretty)
	if err != nil {
		WriteError(w, backend.InternalServerError("falha ao serializar resposta"), pretty)
		return
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// WriteRaw escreve um payload JSON já serializado.
func WriteRaw(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// WriteError escreve o corpo de erro padrão.
func WriteError(w http.ResponseWriter, se *backend.ServiceError, pretty bool) {
	payload, err := Encode(ErrorEnvelope{Error: NewErrorDetail(se)}, pretty)
	if err != nil {
		http.Error(w, se.Message, se.Code)
		return
	}
	WriteRaw(w, se.Code, payload)
}
