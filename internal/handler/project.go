package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/alibekd/taskboard/internal/cache"
	"github.com/alibekd/taskboard/internal/model"
	"github.com/alibekd/taskboard/internal/policy"
	"github.com/alibekd/taskboard/internal/queue"
	"github.com/alibekd/taskboard/internal/repository"
	"github.com/alibekd/taskboard/internal/service"
)

// ProjectHandler bundles the project repository and the resource cache.
// Every operation consults the access policy before touching storage;
// read denials answer 404 so they never confirm a project exists.
type ProjectHandler struct {
	Projects *repository.ProjectRepo
	Cache    *cache.Store
}

func NewProjectHandler(projects *repository.ProjectRepo, c *cache.Store) *ProjectHandler {
	return &ProjectHandler{Projects: projects, Cache: c}
}

// ----- DTOs -----

type projectReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"` // private | team | public
}

type memberReq struct {
	UserID uint64 `json:"user_id"`
}

type projectResp struct {
	ID          uint64   `json:"id"`
	OwnerID     uint64   `json:"owner_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Visibility  string   `json:"visibility"`
	Members     []uint64 `json:"members,omitempty"`
}

func toProjectResp(p model.Project) projectResp {
	return projectResp{
		ID: p.ID, OwnerID: p.OwnerID, Name: p.Name,
		Description: p.Description, Visibility: p.Visibility, Members: p.MemberIDs,
	}
}

func validVisibility(v string) bool {
	return v == model.VisibilityPrivate || v == model.VisibilityTeam || v == model.VisibilityPublic
}

// Create registers a new project owned by the caller.
func (h *ProjectHandler) Create(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req projectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Visibility == "" {
		req.Visibility = model.VisibilityPrivate
	}
	if req.Name == "" || !validVisibility(req.Visibility) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and valid visibility required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	id, err := h.Projects.Create(ctx, p.ID, req.Name, req.Description, req.Visibility)
	if err != nil {
		return fail(c, err)
	}

	h.invalidate(ctx, model.Project{ID: id, OwnerID: p.ID, Visibility: req.Visibility})
	_ = service.PublishActivity(ctx, queue.ActivityEvent{
		Type: queue.EventProjectCreated, ActorID: p.ID, Resource: "project", ResourceID: id,
	})

	return c.JSON(http.StatusCreated, projectResp{
		ID: id, OwnerID: p.ID, Name: req.Name, Description: req.Description, Visibility: req.Visibility,
	})
}

// List returns the projects the caller may read, read-through cached per
// viewer.
func (h *ProjectHandler) List(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	key := cache.UserProjectsKey(p.ID)
	if b, hit := h.Cache.Get(ctx, key); hit {
		var cached []projectResp
		if err := json.Unmarshal(b, &cached); err == nil {
			return c.JSON(http.StatusOK, cached)
		}
	}

	projects, err := h.Projects.ListVisibleTo(ctx, p)
	if err != nil {
		return fail(c, err)
	}
	resp := make([]projectResp, 0, len(projects))
	for _, pr := range projects {
		resp = append(resp, toProjectResp(pr))
	}
	if b, err := json.Marshal(resp); err == nil {
		h.Cache.Set(ctx, key, b)
	}
	return c.JSON(http.StatusOK, resp)
}

// Get returns one project if the caller may read it.
func (h *ProjectHandler) Get(c echo.Context) error {
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

	project, err := h.load(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if !policy.CanAccess(policy.FromProject(project), p) {
		return notFound(c)
	}
	return c.JSON(http.StatusOK, toProjectResp(project))
}

// Update changes name, description or visibility.  Owner or admin only.
func (h *ProjectHandler) Update(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req projectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || !validVisibility(req.Visibility) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and valid visibility required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	project, err := h.load(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	res := policy.FromProject(project)
	if !policy.CanAccess(res, p) {
		return notFound(c)
	}
	if !policy.CanModify(res, p) {
		return fail(c, service.ErrForbidden)
	}

	if err := h.Projects.Update(ctx, id, req.Name, req.Description, req.Visibility); err != nil {
		return fail(c, err)
	}
	// A visibility change can alter an unknown set of viewers' listings;
	// sweep them all along with the targeted keys.
	h.invalidate(ctx, project)
	if req.Visibility != project.Visibility {
		h.Cache.DeletePrefix(ctx, cache.UserProjectsPrefix)
	}

	project.Name, project.Description, project.Visibility = req.Name, req.Description, req.Visibility
	return c.JSON(http.StatusOK, toProjectResp(project))
}

// Delete removes a project.  Owner or admin only.
func (h *ProjectHandler) Delete(c echo.Context) error {
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

	project, err := h.load(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	res := policy.FromProject(project)
	if !policy.CanAccess(res, p) {
		return notFound(c)
	}
	if !policy.CanModify(res, p) {
		return fail(c, service.ErrForbidden)
	}

	if err := h.Projects.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	h.invalidate(ctx, project)
	h.Cache.DeletePrefix(ctx, cache.UserProjectsPrefix)
	_ = service.PublishActivity(ctx, queue.ActivityEvent{
		Type: queue.EventProjectDeleted, ActorID: p.ID, Resource: "project", ResourceID: id,
	})
	return c.NoContent(http.StatusNoContent)
}

// AddMember grants a user team membership.  Owner or admin only.
func (h *ProjectHandler) AddMember(c echo.Context) error {
	return h.changeMember(c, func(ctx context.Context, projectID, userID uint64) error {
		return h.Projects.AddMember(ctx, projectID, userID)
	})
}

// RemoveMember revokes a user's membership.  Owner or admin only.
func (h *ProjectHandler) RemoveMember(c echo.Context) error {
	return h.changeMember(c, func(ctx context.Context, projectID, userID uint64) error {
		return h.Projects.RemoveMember(ctx, projectID, userID)
	})
}

func (h *ProjectHandler) changeMember(c echo.Context, apply func(ctx context.Context, projectID, userID uint64) error) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	userID, err := memberTarget(c)
	if err != nil || userID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	project, err := h.load(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	res := policy.FromProject(project)
	if !policy.CanAccess(res, p) {
		return notFound(c)
	}
	if !policy.CanModify(res, p) {
		return fail(c, service.ErrForbidden)
	}

	if err := apply(ctx, id, userID); err != nil {
		return fail(c, err)
	}
	// Invalidate the project itself plus the affected user's listing on
	// top of the owner's and remaining members'.
	project.MemberIDs = append(project.MemberIDs, userID)
	h.invalidate(ctx, project)
	return c.NoContent(http.StatusNoContent)
}

// memberTarget reads the target user from the path (DELETE …/members/:uid)
// or the body (POST …/members).
func memberTarget(c echo.Context) (uint64, error) {
	if raw := c.Param("uid"); raw != "" {
		return strconv.ParseUint(raw, 10, 64)
	}
	var req memberReq
	if err := c.Bind(&req); err != nil {
		return 0, err
	}
	return req.UserID, nil
}

// load reads a project through the cache: hit returns the cached tuple,
// miss falls back to the store and fills the cache.  A cache outage
// degrades to direct store reads.
func (h *ProjectHandler) load(ctx context.Context, id uint64) (model.Project, error) {
	key := cache.ProjectKey(id)
	if b, hit := h.Cache.Get(ctx, key); hit {
		var p model.Project
		if err := json.Unmarshal(b, &p); err == nil {
			return p, nil
		}
	}
	p, err := h.Projects.GetByID(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	if b, err := json.Marshal(p); err == nil {
		h.Cache.Set(ctx, key, b)
	}
	return p, nil
}

// invalidate deletes the project's cache key and the listing keys of
// everyone whose view it shapes.  Deletion, never update: the next read
// repopulates from the store.
func (h *ProjectHandler) invalidate(ctx context.Context, p model.Project) {
	keys := []string{cache.ProjectKey(p.ID), cache.UserProjectsKey(p.OwnerID)}
	for _, m := range p.MemberIDs {
		keys = append(keys, cache.UserProjectsKey(m))
	}
	h.Cache.Delete(ctx, keys...)
	if p.Visibility == model.VisibilityPublic {
		h.Cache.DeletePrefix(ctx, cache.UserProjectsPrefix)
	}
}

func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
