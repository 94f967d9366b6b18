package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SessionDropper releases per-principal notification state on logout.
// Implemented by the notification session manager.
type SessionDropper interface {
	Drop(principalID string)
}

type AuthHandler struct {
	service  *UserService
	sessions SessionDropper
}

func NewAuthHandler(service *UserService, sessions SessionDropper) *AuthHandler {
	return &AuthHandler{service: service, sessions: sessions}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := h.service.RegisterUser(c.Request().Context(), req); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var cred Credential
	if err := c.Bind(&cred); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	token, err := h.service.AuthenticateUser(c.Request().Context(), cred)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

// Logout tears down the caller's notification session so a stale subscription
// cannot keep firing alerts for the old principal.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := c.Get("user").(*JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing user claims"})
	}
	h.sessions.Drop(claims.UserID)
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}
