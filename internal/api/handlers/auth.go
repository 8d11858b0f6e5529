package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tradebotlabs/trading-engine/internal/auth"
)

// AuthHandler exposes the single endpoint a one-operator engine needs:
// a way to confirm a bearer token is still valid. There is no
// register/login/refresh flow since there is no credential store — the
// token is minted once at process startup (see cmd/bot/main.go) and
// handed to the operator out of band.
type AuthHandler struct {
	authService *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Whoami returns 200 if the caller's bearer token is valid; it is
// mounted behind AuthMiddleware.Authenticate so reaching the handler
// body at all is proof enough.
func (h *AuthHandler) Whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"subject": "operator"})
}
