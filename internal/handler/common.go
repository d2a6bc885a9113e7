package handler // handler defines http handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/alibekd/taskboard/internal/middleware"
	"github.com/alibekd/taskboard/internal/model"
	"github.com/alibekd/taskboard/internal/repository"
	"github.com/alibekd/taskboard/internal/service"
)

// dbTimeout bounds every store call made on behalf of a request.
const dbTimeout = 5 * time.Second

// reqContext derives a bounded context from the request.
func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// principal returns the identity attached by the auth middleware.  The
// middleware guarantees its presence on protected routes; the zero value
// with ok=false only appears if a route was wired without it.
func principal(c echo.Context) (model.Principal, bool) {
	return middleware.PrincipalFrom(c)
}

// fail maps service and repository errors onto the HTTP taxonomy.  The
// five recoverable kinds get their statuses; anything else is an
// infrastructure fault that is logged and answered generically so no
// internal detail leaks to the client.
func fail(c echo.Context, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "reasons": verr.Reasons})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	log.Printf("handler: %s %s failed: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// notFound hides a resource from a principal who may not see it; the
// response is indistinguishable from the resource not existing.
func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
}
