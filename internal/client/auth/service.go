// Package auth manages the CLI session: login against the server and the tokens kept in local storage.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/tmmerge/internal/client/api"
	"github.com/iudanet/tmmerge/internal/client/storage"
	"github.com/iudanet/tmmerge/internal/validation"
	pkgapi "github.com/iudanet/tmmerge/pkg/api"
)

// ErrNotAuthenticated is returned when there is no usable local session.
var ErrNotAuthenticated = errors.New("not authenticated, run login first")

// refreshBefore: access token обновляется заранее, чтобы не истечь посреди запроса
const refreshBefore = 30 * time.Second

// APIClient is the part of the server API the session needs.
type APIClient interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Service предоставляет функции авторизации
type Service struct {
	logger    *slog.Logger
	apiClient APIClient
	store     storage.AuthStorage
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(logger *slog.Logger, apiClient APIClient, store storage.AuthStorage) *Service {
	return &Service{
		logger:    logger,
		apiClient: apiClient,
		store:     store,
		now:       time.Now,
	}
}

// RegisterResult содержит результат регистрации
type RegisterResult struct {
	UserID   string
	Username string
	Admin    bool
}

// Register регистрирует нового пользователя. Сессия не создаётся, нужен login.
func (s *Service) Register(ctx context.Context, username, password string) (*RegisterResult, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Register(ctx, pkgapi.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	return &RegisterResult{UserID: resp.UserID, Username: username, Admin: resp.Admin}, nil
}

// Login выполняет аутентификацию и сохраняет сессию локально
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	clientID, err := s.getOrCreateClientID(ctx)
	if err != nil {
		return nil, err
	}

	data := &storage.AuthData{
		Username:     username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ClientID:     clientID,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
	if err := s.store.SaveAuth(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.InfoContext(ctx, "logged in", slog.String("username", username))
	return data, nil
}

// Session возвращает текущую сессию, при необходимости обновляя access token
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	data, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if s.now().Add(refreshBefore).Unix() < data.ExpiresAt {
		return data, nil
	}

	resp, err := s.apiClient.Refresh(ctx, data.RefreshToken)
	if api.IsStatus(err, http.StatusUnauthorized) {
		// refresh token истёк или отозван
		if delErr := s.store.DeleteAuth(ctx); delErr != nil && !errors.Is(delErr, storage.ErrAuthNotFound) {
			s.logger.WarnContext(ctx, "failed to delete stale session", slog.Any("error", delErr))
		}
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	data.AccessToken = resp.AccessToken
	data.RefreshToken = resp.RefreshToken
	data.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
	if err := s.store.SaveAuth(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.DebugContext(ctx, "access token refreshed", slog.String("username", data.Username))
	return data, nil
}

// Status возвращает сохранённую сессию без обращения к серверу, nil если её нет
func (s *Service) Status(ctx context.Context) (*storage.AuthData, error) {
	data, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return data, nil
}

// Logout выполняет выход из системы
// Удаляет локальные данные авторизации и уведомляет сервер (best effort)
func (s *Service) Logout(ctx context.Context) error {
	data, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return ErrNotAuthenticated
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	// Завершаем только эту сессию, остальные устройства остаются
	if logoutErr := s.apiClient.Logout(ctx, data.AccessToken, data.RefreshToken); logoutErr != nil {
		// Не прерываем процесс, если сервер недоступен
		s.logger.WarnContext(ctx, "failed to logout on server", slog.Any("error", logoutErr))
	}

	// Всегда удаляем локальные данные, даже если сервер недоступен
	if err := s.store.DeleteAuth(ctx); err != nil {
		return fmt.Errorf("failed to delete local auth data: %w", err)
	}
	return nil
}

// getOrCreateClientID возвращает существующий ClientID или создает новый.
// ClientID идентифицирует этот клиент как editor client в событиях workspace.
func (s *Service) getOrCreateClientID(ctx context.Context) (string, error) {
	data, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return uuid.NewString(), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get auth data: %w", err)
	}
	if data.ClientID != "" {
		return data.ClientID, nil
	}
	return uuid.NewString(), nil
}

func validateCredentials(username, password string) error {
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}
	return nil
}
