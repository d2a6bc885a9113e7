package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/alibekd/taskboard/internal/queue"
	"github.com/alibekd/taskboard/internal/service"
)

// AuthHandler bundles dependencies for the credential endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register: create the account and return the public profile.  No tokens
// are issued here; the client logs in afterwards.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	p, err := h.Auth.Register(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	// Best-effort activity trail; registration never fails on broker trouble.
	_ = service.PublishActivity(ctx, queue.ActivityEvent{
		Type: queue.EventUserRegistered, ActorID: p.ID, SubjectID: p.ID,
	})

	return c.JSON(http.StatusCreated, userPart{ID: p.ID, Email: p.Email, Role: p.Role})
}

// Login: verify credentials and return a fresh access/refresh pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	pair, p, err := h.Auth.Login(ctx, strings.ToLower(strings.TrimSpace(req.Email)), req.Password,
		c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, authResp{
		User:    userPart{ID: p.ID, Email: p.Email, Role: p.Role},
		Access:  tokenPart{Token: pair.Access.Token, Expires: pair.Access.Exp},
		Refresh: tokenPart{Token: pair.Refresh.Token, Expires: pair.Refresh.Exp}, // raw back to client
	})
}

// Refresh: rotate the refresh token and return a new pair.  The old
// secret is dead afterwards regardless of remaining TTL.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	pair, p, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken),
		c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, authResp{
		User:    userPart{ID: p.ID, Email: p.Email, Role: p.Role},
		Access:  tokenPart{Token: pair.Access.Token, Expires: pair.Access.Exp},
		Refresh: tokenPart{Token: pair.Refresh.Token, Expires: pair.Refresh.Exp},
	})
}

// Logout ends a single session.  Both inputs are optional: a refresh
// token in the body revokes its record, a valid bearer drops the cached
// profile.  Nothing here is an error; logout always reports success.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := reqContext(c)
	defer cancel()

	// The route is unauthenticated, but when a bearer rides along we use
	// it to find whose cached profile to drop.  A bad bearer is ignored.
	var uid uint64
	if header := c.Request().Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		if p, err := h.Auth.Verify(ctx, strings.TrimPrefix(header, "Bearer ")); err == nil {
			uid = p.ID
		}
	}

	h.Auth.Logout(ctx, strings.TrimSpace(req.RefreshToken), uid)
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every session of the authenticated user and reports
// how many it ended.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	n, err := h.Auth.LogoutAll(ctx, p.ID)
	if err != nil {
		return fail(c, err)
	}

	_ = service.PublishActivity(ctx, queue.ActivityEvent{
		Type: queue.EventSessionsRevoked, ActorID: p.ID, SubjectID: p.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, userPart{ID: p.ID, Email: p.Email, Role: p.Role})
}
