package dispatcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/raywall/fast-endpoints/pkg/apiconfig"
	"github.com/raywall/fast-endpoints/pkg/backend"
	"github.com/raywall/fast-endpoints/pkg/responder"
)

// Códigos JSON-RPC 2.0 para falhas de protocolo. Falhas dos métodos usam o
// status HTTP como código.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
)

type rpcRequest struct {
	JSONRPC    string          `json:"jsonrpc"`
	ID         json.RawMessage `json:"id,omitempty"`
	Method     string          `json:"method"`
	Params     json.RawMessage `json:"params,omitempty"`
	APIVersion string          `json:"apiVersion,omitempty"`
}

type rpcError struct {
	Code    int                   `json:"code"`
	Message string                `json:"message"`
	Data    []responder.ErrorItem `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func newRPCError(se *backend.ServiceError) *rpcError {
	detail := responder.NewErrorDetail(se)
	return &rpcError{Code: se.Code, Message: se.Message, Data: detail.Errors}
}

// handleRPC atende POST {base}/rpc com uma chamada ou um lote (array).
// Chamadas sem id são notificações e não geram resposta.
func (d *Dispatcher) handleRPC(w http.ResponseWriter, r *http.Request) {
	call := callFrom(r.Context())
	call.transport = "rpc"
	pretty := responder.Prettify(r)

	body, err := d.readBody(w, r)
	if err != nil {
		responder.WriteError(w, backend.AsServiceError(err), pretty)
		return
	}

	trimmed := bytes.TrimSpace(body)
	batch := len(trimmed) > 0 && trimmed[0] == '['

	var calls []rpcRequest
	if batch {
		err = json.Unmarshal(trimmed, &calls)
	} else {
		var single rpcRequest
		err = json.Unmarshal(trimmed, &single)
		calls = []rpcRequest{single}
	}
	if err != nil {
		responder.WriteJSON(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: rpcParseError, Message: "Parse error"},
		}, pretty)
		return
	}
	if batch && len(calls) == 0 {
		responder.WriteJSON(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: rpcInvalidRequest, Message: "Invalid Request: lote vazio"},
		}, pretty)
		return
	}

	responses := make([]rpcResponse, 0, len(calls))
	for _, c := range calls {
		resp := d.invokeRPC(r, c)
		if len(c.ID) == 0 {
			continue
		}
		responses = append(responses, resp)
	}

	if !batch {
		// Um método único identifica a chamada nas métricas
		call.api, call.version, call.method = "", "", calls[0].Method
		if match, err := d.manager.LookupRPCMethod(calls[0].Method, calls[0].APIVersion); err == nil {
			call.api, call.version = match.API.Name, match.API.Version
		}
	}

	switch {
	case len(responses) == 0:
		w.WriteHeader(http.StatusNoContent)
	case batch:
		responder.WriteJSON(w, http.StatusOK, responses, pretty)
	default:
		status := http.StatusOK
		if e := responses[0].Error; e != nil && e.Code >= 400 && e.Code < 600 {
			status = e.Code
		}
		responder.WriteJSON(w, status, responses[0], pretty)
	}
}

func (d *Dispatcher) invokeRPC(r *http.Request, c rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: c.ID}

	if c.Method == "" || (c.JSONRPC != "" && c.JSONRPC != "2.0") {
		resp.Error = &rpcError{Code: rpcInvalidRequest, Message: "Invalid Request"}
		return resp
	}

	match, err := d.manager.LookupRPCMethod(c.Method, c.APIVersion)
	if err != nil {
		se := backend.NotFound(fmt.Sprintf("método '%s' não encontrado", c.Method))
		if errors.Is(err, apiconfig.ErrAmbiguousMethod) {
			se = backend.BadRequest(fmt.Sprintf("método '%s' existe em mais de uma api ou versão: informe apiVersion", c.Method))
		}
		resp.Error = newRPCError(se)
		return resp
	}

	params := []byte(c.Params)
	if len(bytes.TrimSpace(params)) == 0 || string(bytes.TrimSpace(params)) == "null" {
		params = nil
	}

	req, err := backend.NewRequest(params, nil, nil, r.Header)
	if err != nil {
		resp.Error = newRPCError(backend.AsServiceError(err))
		return resp
	}
	// Parâmetros de path vêm dentro de params nas chamadas RPC
	for _, p := range match.Method.Parameters {
		if v, ok := req.Body[p.Name]; ok {
			req.PathParams[p.Name] = fmt.Sprint(v)
		}
	}

	result, err := d.backend.Invoke(r.Context(), match.API, match.Method.RosyMethod, req)
	if err != nil {
		resp.Error = newRPCError(backend.AsServiceError(err))
		return resp
	}
	if result == nil {
		result = map[string]interface{}{}
	}
	resp.Result = result
	return resp
}
