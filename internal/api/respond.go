package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"gridflow/internal/repository"
	"gridflow/internal/service"
	"gridflow/internal/session"
)

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: message})
}

// writeServiceError 把领域错误映射为 HTTP 状态码。
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoPendingUpload), errors.Is(err, service.ErrUploadInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, service.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
