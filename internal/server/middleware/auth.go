package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/tmmerge/internal/server/handlers"
	"github.com/iudanet/tmmerge/internal/server/jwt"
	"github.com/iudanet/tmmerge/pkg/api"
)

// TokenValidator проверяет access token
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена
// Кладет user ID и username в контекст запроса
func AuthMiddleware(logger *slog.Logger, validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := handlers.BearerToken(r)
			if !ok {
				logger.WarnContext(r.Context(), "missing or malformed Authorization header", slog.String("path", r.URL.Path))
				writeError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateAccessToken(tokenString)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid access token", slog.Any("error", err))
				writeError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := handlers.WithUser(r.Context(), claims.UserID, claims.Username)
			logger.DebugContext(ctx, "user authenticated", slog.String("user_id", claims.UserID), slog.String("username", claims.Username))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeError отправляет JSON ошибку в формате api.ErrorResponse
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
