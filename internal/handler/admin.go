package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alibekd/taskboard/internal/model"
	"github.com/alibekd/taskboard/internal/queue"
	"github.com/alibekd/taskboard/internal/repository"
	"github.com/alibekd/taskboard/internal/service"
)

// AdminHandler serves account administration.  Routes are mounted behind
// RequireRole(admin); the handlers still read the principal for the
// activity trail.
type AdminHandler struct {
	Auth  *service.AuthService
	Users *repository.UserRepo
}

func NewAdminHandler(auth *service.AuthService, users *repository.UserRepo) *AdminHandler {
	return &AdminHandler{Auth: auth, Users: users}
}

// Deactivate disables an account and ends all of its sessions.  The
// user's outstanding access tokens die at their next Verify.
func (h *AdminHandler) Deactivate(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	revoked, err := h.Auth.Deactivate(ctx, id)
	if err != nil {
		return fail(c, err)
	}

	_ = service.PublishActivity(ctx, queue.ActivityEvent{
		Type: queue.EventUserDeactivated, ActorID: p.ID, SubjectID: id,
	})

	return c.JSON(http.StatusOK, echo.Map{"deactivated": id, "sessions_revoked": revoked})
}

type roleReq struct {
	Role string `json:"role"` // user | admin
}

// SetRole changes a user's role.
func (h *AdminHandler) SetRole(c echo.Context) error {
	if _, ok := principal(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req roleReq
	if err := c.Bind(&req); err != nil || (req.Role != model.RoleUser && req.Role != model.RoleAdmin) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be user or admin"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	if err := h.Users.SetRole(ctx, id, req.Role); err != nil {
		return fail(c, err)
	}
	// Drop the cached profile so the role change is visible at the next
	// Verify instead of after cache expiry.
	h.Auth.Logout(ctx, "", id)

	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": req.Role})
}
