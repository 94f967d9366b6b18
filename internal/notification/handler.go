package notification

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"NoticeHub/internal/auth"
)

// NotificationHandler exposes the per-principal inbox and the publish
// endpoint over HTTP.
type NotificationHandler struct {
	manager *Manager
	service *NotificationService
	users   *auth.UserRepository
}

func NewNotificationHandler(manager *Manager, service *NotificationService, users *auth.UserRepository) *NotificationHandler {
	return &NotificationHandler{manager: manager, service: service, users: users}
}

// InboxResponse is the consumed surface of the delivery core: current matched,
// unexpired notifications newest first, plus the status fields.
type InboxResponse struct {
	Notifications []*Notification `json:"notifications"`
	Loading       bool            `json:"loading"`
	Error         string          `json:"error,omitempty"`
}

// PublishRequest is the producer-side payload.
type PublishRequest struct {
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Targets    []string  `json:"targets"`     // "dimension:value" tokens, e.g. "class:10A", "role:all"
	ValidUntil time.Time `json:"valid_until"`
}

// SenderRoleResponse labels a notification sender, best effort.
type SenderRoleResponse struct {
	ID    string `json:"id"`
	Role  string `json:"role,omitempty"`
	State string `json:"state"` // unknown, loading, resolved, unavailable
}

func (h *NotificationHandler) session(c echo.Context) (*Session, error) {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing user claims")
	}
	user, err := h.users.FindByID(c.Request().Context(), claims.UserID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile")
	}
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unknown principal")
	}
	return h.manager.SessionFor(c.Request().Context(), user.AudienceProfile(), user.Email, user.AlertsEnabled)
}

// Inbox returns the caller's current notification view.
func (h *NotificationHandler) Inbox(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	resp := InboxResponse{
		Notifications: sess.Notifications(),
		Loading:       sess.Loading(),
	}
	if loadErr := sess.LastError(); loadErr != nil {
		resp.Error = loadErr.Error()
	}
	if resp.Notifications == nil {
		resp.Notifications = []*Notification{}
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh re-runs the batch load for the caller's session.
func (h *NotificationHandler) Refresh(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.Refresh(c.Request().Context()); err != nil {
		// Retryable; the previous inbox is preserved.
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "refresh failed, previous results kept"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "refreshed"})
}

// SenderRole returns the memoized display role for a sender id.
func (h *NotificationHandler) SenderRole(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	label, state := sess.SenderRole(id)
	resp := SenderRoleResponse{ID: id, Role: label}
	switch state {
	case RoleLoading:
		resp.State = "loading"
	case RoleResolved:
		resp.State = "resolved"
	case RoleUnavailable:
		resp.State = "unavailable"
	default:
		resp.State = "unknown"
	}
	return c.JSON(http.StatusOK, resp)
}

// Publish lets admins and staff write a new notification document.
func (h *NotificationHandler) Publish(c echo.Context) error {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing user claims"})
	}
	var req PublishRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	n := &Notification{
		Title:      req.Title,
		Body:       req.Body,
		Sender:     claims.UserID,
		IssuedAt:   time.Now(),
		ValidUntil: req.ValidUntil,
		Targets:    req.Targets,
	}
	if err := h.service.Publish(c.Request().Context(), n); err != nil {
		switch err {
		case ErrNoTargets, ErrAlreadyExpired:
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to publish notification"})
	}
	return c.JSON(http.StatusCreated, map[string]string{"message": "Notification published successfully"})
}
