package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError é o erro que um handler devolve para controlar o status HTTP
// e o "reason" publicados no corpo de erro.
type ServiceError struct {
	Code    int
	Reason  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, e.Reason, e.Message)
}

// NewError cria um ServiceError com o reason padrão do código.
func NewError(code int, message string) *ServiceError {
	return &ServiceError{Code: code, Reason: ReasonFor(code), Message: message}
}

func BadRequest(message string) *ServiceError   { return NewError(http.StatusBadRequest, message) }
func Unauthorized(message string) *ServiceError { return NewError(http.StatusUnauthorized, message) }
func Forbidden(message string) *ServiceError    { return NewError(http.StatusForbidden, message) }
func NotFound(message string) *ServiceError     { return NewError(http.StatusNotFound, message) }
func Conflict(message string) *ServiceError     { return NewError(http.StatusConflict, message) }

func InternalServerError(message string) *ServiceError {
	return NewError(http.StatusInternalServerError, message)
}

// ReasonFor traduz o status HTTP no reason do corpo de erro.
func ReasonFor(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "badRequest"
	case http.StatusUnauthorized:
		return "required"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "notFound"
	case http.StatusMethodNotAllowed:
		return "httpMethodNotAllowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusGone:
		return "deleted"
	case http.StatusPreconditionFailed:
		return "conditionNotMet"
	case http.StatusRequestEntityTooLarge:
		return "uploadTooLarge"
	case http.StatusServiceUnavailable:
		return "backendUnavailable"
	default:
		return "backendError"
	}
}

// AsServiceError converte qualquer erro em ServiceError. Erros que não são
// ServiceError viram 500 sem expor a mensagem original; códigos fora da faixa
// 4xx/5xx também viram 500, preservando a mensagem.
func AsServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		if se.Code < 400 || se.Code > 599 {
			return &ServiceError{Code: http.StatusInternalServerError, Reason: ReasonFor(http.StatusInternalServerError), Message: se.Message}
		}
		if se.Reason == "" {
			return &ServiceError{Code: se.Code, Reason: ReasonFor(se.Code), Message: se.Message}
		}
		return se
	}
	return InternalServerError("Internal Server Error")
}
