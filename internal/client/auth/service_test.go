package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tmmerge/internal/client/api"
	"github.com/iudanet/tmmerge/internal/client/storage"
	pkgapi "github.com/iudanet/tmmerge/pkg/api"
)

type fakeAPI struct {
	registerErr error
	loginErr    error
	refreshErr  error
	logoutErr   error

	loginReq     pkgapi.LoginRequest
	refreshCalls []string
	logoutCalls  [][2]string
	issued       int
}

func (f *fakeAPI) Register(_ context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &pkgapi.RegisterResponse{UserID: "user-1", Admin: req.Username == "admin"}, nil
}

func (f *fakeAPI) Login(_ context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error) {
	f.loginReq = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.tokens(), nil
}

func (f *fakeAPI) Refresh(_ context.Context, refreshToken string) (*pkgapi.TokenResponse, error) {
	f.refreshCalls = append(f.refreshCalls, refreshToken)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.tokens(), nil
}

func (f *fakeAPI) Logout(_ context.Context, accessToken, refreshToken string) error {
	f.logoutCalls = append(f.logoutCalls, [2]string{accessToken, refreshToken})
	return f.logoutErr
}

func (f *fakeAPI) tokens() *pkgapi.TokenResponse {
	f.issued++
	n := string(rune('0' + f.issued))
	return &pkgapi.TokenResponse{AccessToken: "access-" + n, RefreshToken: "refresh-" + n, ExpiresIn: 900}
}

type memoryAuthStorage struct {
	data    *storage.AuthData
	saveErr error
}

func (m *memoryAuthStorage) SaveAuth(_ context.Context, auth *storage.AuthData) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *auth
	m.data = &cp
	return nil
}

func (m *memoryAuthStorage) GetAuth(context.Context) (*storage.AuthData, error) {
	if m.data == nil {
		return nil, storage.ErrAuthNotFound
	}
	cp := *m.data
	return &cp, nil
}

func (m *memoryAuthStorage) DeleteAuth(context.Context) error {
	if m.data == nil {
		return storage.ErrAuthNotFound
	}
	m.data = nil
	return nil
}

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *fakeAPI, *memoryAuthStorage) {
	client := &fakeAPI{}
	store := &memoryAuthStorage{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), client, store)
	svc.now = func() time.Time { return testNow }
	return svc, client, store
}

func TestService_Register(t *testing.T) {
	svc, _, store := newTestService()

	res, err := svc.Register(context.Background(), "admin", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, "admin", res.Username)
	assert.True(t, res.Admin)
	assert.Nil(t, store.data, "register does not create a session")
}

func TestService_Register_Errors(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		apiErr   error
		wantErr  string
	}{
		{name: "short username", username: "ab", password: "password123", wantErr: "invalid username"},
		{name: "short password", username: "alice", password: "short", wantErr: "invalid password"},
		{name: "server error", username: "alice", password: "password123", apiErr: errors.New("conflict"), wantErr: "registration failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, client, _ := newTestService()
			client.registerErr = tt.apiErr

			_, err := svc.Register(context.Background(), tt.username, tt.password)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestService_Login(t *testing.T) {
	svc, client, store := newTestService()

	data, err := svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)

	assert.Equal(t, pkgapi.LoginRequest{Username: "alice", Password: "password123"}, client.loginReq)
	assert.Equal(t, "access-1", data.AccessToken)
	assert.Equal(t, "refresh-1", data.RefreshToken)
	assert.Equal(t, testNow.Add(900*time.Second).Unix(), data.ExpiresAt)
	assert.NotEmpty(t, data.ClientID)
	require.NotNil(t, store.data)
	assert.Equal(t, *data, *store.data)

	// Повторный login на том же клиенте сохраняет ClientID
	clientID := data.ClientID
	data, err = svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, clientID, data.ClientID)
	assert.Equal(t, "access-2", data.AccessToken)
}

func TestService_Login_Errors(t *testing.T) {
	t.Run("server rejects", func(t *testing.T) {
		svc, client, store := newTestService()
		client.loginErr = &api.StatusError{StatusCode: http.StatusUnauthorized, Message: "invalid credentials"}

		_, err := svc.Login(context.Background(), "alice", "password123")
		assert.ErrorContains(t, err, "login failed")
		assert.Nil(t, store.data)
	})

	t.Run("save fails", func(t *testing.T) {
		svc, _, store := newTestService()
		store.saveErr = errors.New("disk full")

		_, err := svc.Login(context.Background(), "alice", "password123")
		assert.ErrorContains(t, err, "failed to save session")
	})

	t.Run("invalid username", func(t *testing.T) {
		svc, client, _ := newTestService()

		_, err := svc.Login(context.Background(), "bad name", "password123")
		assert.ErrorContains(t, err, "invalid username")
		assert.Empty(t, client.loginReq.Username, "server not called")
	})
}

func TestService_Session(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Session(context.Background())
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("valid token is returned as is", func(t *testing.T) {
		svc, client, store := newTestService()
		store.data = &storage.AuthData{Username: "alice", AccessToken: "a", RefreshToken: "r", ExpiresAt: testNow.Add(time.Hour).Unix()}

		data, err := svc.Session(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a", data.AccessToken)
		assert.Empty(t, client.refreshCalls)
	})

	t.Run("near expiry refreshes", func(t *testing.T) {
		svc, client, store := newTestService()
		store.data = &storage.AuthData{Username: "alice", AccessToken: "a", RefreshToken: "r", ClientID: "c1", ExpiresAt: testNow.Add(10 * time.Second).Unix()}

		data, err := svc.Session(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"r"}, client.refreshCalls)
		assert.Equal(t, "access-1", data.AccessToken)
		assert.Equal(t, "refresh-1", store.data.RefreshToken)
		assert.Equal(t, "c1", store.data.ClientID)
		assert.Equal(t, testNow.Add(900*time.Second).Unix(), store.data.ExpiresAt)
	})

	t.Run("rejected refresh drops the session", func(t *testing.T) {
		svc, client, store := newTestService()
		store.data = &storage.AuthData{Username: "alice", RefreshToken: "r", ExpiresAt: testNow.Add(-time.Minute).Unix()}
		client.refreshErr = &api.StatusError{StatusCode: http.StatusUnauthorized, Message: "expired"}

		_, err := svc.Session(context.Background())
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Nil(t, store.data)
	})

	t.Run("network failure keeps the session", func(t *testing.T) {
		svc, client, store := newTestService()
		store.data = &storage.AuthData{Username: "alice", RefreshToken: "r", ExpiresAt: testNow.Unix()}
		client.refreshErr = errors.New("connection refused")

		_, err := svc.Session(context.Background())
		assert.ErrorContains(t, err, "failed to refresh session")
		assert.NotErrorIs(t, err, ErrNotAuthenticated)
		assert.NotNil(t, store.data)
	})
}

func TestService_Status(t *testing.T) {
	svc, _, store := newTestService()

	data, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)

	store.data = &storage.AuthData{Username: "alice", ExpiresAt: testNow.Add(-time.Hour).Unix()}
	data, err = svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", data.Username)
}

func TestService_Logout(t *testing.T) {
	t.Run("ends this session", func(t *testing.T) {
		svc, client, store := newTestService()
		store.data = &storage.AuthData{Username: "alice", AccessToken: "a", RefreshToken: "r"}

		require.NoError(t, svc.Logout(context.Background()))
		assert.Equal(t, [][2]string{{"a", "r"}}, client.logoutCalls)
		assert.Nil(t, store.data)
	})

	t.Run("server unavailable still clears local session", func(t *testing.T) {
		svc, client, store := newTestService()
		store.data = &storage.AuthData{Username: "alice", AccessToken: "a", RefreshToken: "r"}
		client.logoutErr = errors.New("connection refused")

		require.NoError(t, svc.Logout(context.Background()))
		assert.Nil(t, store.data)
	})

	t.Run("not logged in", func(t *testing.T) {
		svc, client, _ := newTestService()

		assert.ErrorIs(t, svc.Logout(context.Background()), ErrNotAuthenticated)
		assert.Empty(t, client.logoutCalls)
	})
}
