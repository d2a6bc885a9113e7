package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/alibekd/taskboard/internal/handler"
	"github.com/alibekd/taskboard/internal/middleware"
	"github.com/alibekd/taskboard/internal/model"
	"github.com/alibekd/taskboard/internal/service"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Projects *handler.ProjectHandler
	Tasks    *handler.TaskHandler
	Admin    *handler.AdminHandler
}

// Register mounts all routes.  Credential endpoints live under /v1/auth
// and need no session; everything else runs behind the Auth middleware,
// which resolves the bearer token into a Principal or answers 401.
// Policy denials inside handlers answer 403 (or 404 for resources the
// caller may not know exist).
func Register(e *echo.Echo, h Handlers, auth *service.AuthService, extra ...echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated credential lifecycle.  Logout is also mounted here:
	// it accepts an optional bearer but never requires one, and always
	// reports success.
	g := e.Group("/v1/auth", extra...)
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	g.POST("/refresh", h.Auth.Refresh)
	g.POST("/logout", h.Auth.Logout)

	// Protected API.
	v1 := e.Group("/v1")
	v1.Use(middleware.Auth(auth))
	v1.POST("/auth/logout-all", h.Auth.LogoutAll)
	v1.GET("/me", h.Auth.Me)

	v1.POST("/projects", h.Projects.Create)
	v1.GET("/projects", h.Projects.List)
	v1.GET("/projects/:id", h.Projects.Get)
	v1.PUT("/projects/:id", h.Projects.Update)
	v1.DELETE("/projects/:id", h.Projects.Delete)
	v1.POST("/projects/:id/members", h.Projects.AddMember)
	v1.DELETE("/projects/:id/members/:uid", h.Projects.RemoveMember)

	v1.POST("/projects/:id/tasks", h.Tasks.Create)
	v1.GET("/projects/:id/tasks", h.Tasks.ListByProject)
	v1.GET("/tasks/:id", h.Tasks.Get)
	v1.PUT("/tasks/:id", h.Tasks.Update)
	v1.DELETE("/tasks/:id", h.Tasks.Delete)

	// Admin-only account management.
	adm := e.Group("/v1/admin")
	adm.Use(middleware.Auth(auth))
	adm.Use(middleware.RequireRole(model.RoleAdmin))
	adm.POST("/users/:id/deactivate", h.Admin.Deactivate)
	adm.PUT("/users/:id/role", h.Admin.SetRole)
}
