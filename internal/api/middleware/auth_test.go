package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/auth"
)

func newTestAuthMiddleware(t *testing.T) (*AuthMiddleware, *auth.Service) {
	t.Helper()
	svc, err := auth.New("test-secret-value-long-enough", time.Hour)
	require.NoError(t, err)
	return NewAuthMiddleware(svc), svc
}

func runAuthenticate(m *AuthMiddleware, req *http.Request) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	called := false
	next := func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	}
	err := m.Authenticate(next)(c)
	if err == nil && !called {
		return rec, nil
	}
	return rec, err
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	m, _ := newTestAuthMiddleware(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk", nil)

	_, err := runAuthenticate(m, req)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAuthenticateRejectsNonBearerScheme(t *testing.T) {
	m, svc := newTestAuthMiddleware(t)
	token, err := svc.IssueOperatorToken()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk", nil)
	req.Header.Set("Authorization", "Basic "+token)

	_, err = runAuthenticate(m, req)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAuthenticateRejectsInvalidToken(t *testing.T) {
	m, _ := newTestAuthMiddleware(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk", nil)
	req.Header.Set("Authorization", "Bearer garbage-token")

	_, err := runAuthenticate(m, req)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAuthenticateRejectsTokenFromDifferentSecret(t *testing.T) {
	m, _ := newTestAuthMiddleware(t)
	other, err := auth.New("a-completely-different-secret", time.Hour)
	require.NoError(t, err)
	token, err := other.IssueOperatorToken()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = runAuthenticate(m, req)
	require.Error(t, err)
}

func TestAuthenticatePassesThroughWithValidToken(t *testing.T) {
	m, svc := newTestAuthMiddleware(t)
	token, err := svc.IssueOperatorToken()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, err := runAuthenticate(m, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
