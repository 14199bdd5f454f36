package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/iudanet/tmmerge/internal/server/projects"
	"github.com/iudanet/tmmerge/internal/server/security"
	"github.com/iudanet/tmmerge/internal/server/storage"
	"github.com/iudanet/tmmerge/internal/server/tmimport"
	"github.com/iudanet/tmmerge/internal/server/tmmerge"
	"github.com/iudanet/tmmerge/pkg/api"
)

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 8 << 20

// responder содержит общие методы отправки ответов
type responder struct {
	logger *slog.Logger
}

// sendJSON отправляет JSON ответ
func (h responder) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h responder) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}

// decode читает JSON тело запроса; при ошибке сам отправляет 400
func (h responder) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request body",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// currentUser достает пользователя из контекста; без него отвечает 401
func (h responder) currentUser(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID, username, ok := UserFromContext(r.Context())
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return "", "", false
	}
	return userID, username, true
}

// sendServiceError maps a service error to a status code:
// not found 404, not authorized 403, validation 400, conflict 409, other 500.
func (h responder) sendServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
		h.sendError(w, "internal server error", status)
		return
	}
	h.logger.WarnContext(r.Context(), op+" rejected",
		slog.Int("status", status),
		slog.Any("error", err))
	h.sendError(w, err.Error(), status)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrProjectNotFound),
		errors.Is(err, storage.ErrVersionNotFound),
		errors.Is(err, storage.ErrLocaleNotFound),
		errors.Is(err, storage.ErrDocumentNotFound),
		errors.Is(err, storage.ErrTextFlowNotFound),
		errors.Is(err, storage.ErrTransMemoryNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, tmmerge.ErrLocaleNotFound):
		return http.StatusNotFound
	case errors.Is(err, security.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, tmmerge.ErrInvalidRequest),
		errors.Is(err, projects.ErrInvalidInput),
		errors.Is(err, projects.ErrLastMaintainer),
		errors.Is(err, tmimport.ErrInvalidInput),
		errors.Is(err, errInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrAlreadyExists),
		errors.Is(err, storage.ErrUserAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// errInvalidInput помечает ошибки разбора запроса в самих handlers
var errInvalidInput = errors.New("invalid input")
