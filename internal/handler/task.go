package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/alibekd/taskboard/internal/cache"
	"github.com/alibekd/taskboard/internal/model"
	"github.com/alibekd/taskboard/internal/policy"
	"github.com/alibekd/taskboard/internal/queue"
	"github.com/alibekd/taskboard/internal/repository"
	"github.com/alibekd/taskboard/internal/service"
)

// TaskHandler serves task CRUD.  Tasks have no visibility of their own:
// every check evaluates the parent project's tuple.  Team members may
// edit task content; only the owner or an admin touches the project
// itself (see ProjectHandler).
type TaskHandler struct {
	Tasks    *repository.TaskRepo
	Projects *repository.ProjectRepo
	Cache    *cache.Store
}

func NewTaskHandler(tasks *repository.TaskRepo, projects *repository.ProjectRepo, c *cache.Store) *TaskHandler {
	return &TaskHandler{Tasks: tasks, Projects: projects, Cache: c}
}

type taskReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	AssigneeID  *uint64 `json:"assignee_id"`
}

type taskResp struct {
	ID          uint64  `json:"id"`
	ProjectID   uint64  `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	AssigneeID  *uint64 `json:"assignee_id,omitempty"`
}

func toTaskResp(t model.Task) taskResp {
	return taskResp{
		ID: t.ID, ProjectID: t.ProjectID, Title: t.Title,
		Description: t.Description, Status: t.Status, AssigneeID: t.AssigneeID,
	}
}

func validStatus(s string) bool {
	return s == model.TaskStatusTodo || s == model.TaskStatusDoing || s == model.TaskStatusDone
}

// Create adds a task to a project.  Requires content-edit rights.
func (h *TaskHandler) Create(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req taskReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Status == "" {
		req.Status = model.TaskStatusTodo
	}
	if req.Title == "" || !validStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and valid status required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	project, res, err := h.loadProject(ctx, projectID)
	if err != nil {
		return fail(c, err)
	}
	if !policy.CanAccess(res, p) {
		return notFound(c)
	}
	if !policy.CanEditContent(res, p) {
		return fail(c, service.ErrForbidden)
	}

	id, err := h.Tasks.Create(ctx, projectID, req.Title, req.Description, req.Status, req.AssigneeID)
	if err != nil {
		return fail(c, err)
	}
	h.Cache.Delete(ctx, cache.ProjectKey(project.ID))

	return c.JSON(http.StatusCreated, taskResp{
		ID: id, ProjectID: projectID, Title: req.Title,
		Description: req.Description, Status: req.Status, AssigneeID: req.AssigneeID,
	})
}

// ListByProject returns every task of a readable project.
func (h *TaskHandler) ListByProject(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	_, res, err := h.loadProject(ctx, projectID)
	if err != nil {
		return fail(c, err)
	}
	if !policy.CanAccess(res, p) {
		return notFound(c)
	}

	tasks, err := h.Tasks.ListByProject(ctx, projectID)
	if err != nil {
		return fail(c, err)
	}
	resp := make([]taskResp, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toTaskResp(t))
	}
	return c.JSON(http.StatusOK, resp)
}

// Get returns a task if its project is readable.
func (h *TaskHandler) Get(c echo.Context) error {
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

	task, err := h.Tasks.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	_, res, err := h.loadProject(ctx, task.ProjectID)
	if err != nil {
		return fail(c, err)
	}
	if !policy.CanAccess(res, p) {
		return notFound(c)
	}
	return c.JSON(http.StatusOK, toTaskResp(task))
}

// Update edits task content.  Requires content-edit rights on the project.
func (h *TaskHandler) Update(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req taskReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || !validStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and valid status required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	task, err := h.Tasks.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	project, res, err := h.loadProject(ctx, task.ProjectID)
	if err != nil {
		return fail(c, err)
	}
	if !policy.CanAccess(res, p) {
		return notFound(c)
	}
	if !policy.CanEditContent(res, p) {
		return fail(c, service.ErrForbidden)
	}

	if err := h.Tasks.Update(ctx, id, req.Title, req.Description, req.Status, req.AssigneeID); err != nil {
		return fail(c, err)
	}
	h.Cache.Delete(ctx, cache.ProjectKey(project.ID))

	if req.Status == model.TaskStatusDone && task.Status != model.TaskStatusDone {
		_ = service.PublishActivity(ctx, queue.ActivityEvent{
			Type: queue.EventTaskCompleted, ActorID: p.ID,
			Resource: "task", ResourceID: id, Detail: req.Title,
		})
	}

	task.Title, task.Description, task.Status, task.AssigneeID = req.Title, req.Description, req.Status, req.AssigneeID
	return c.JSON(http.StatusOK, toTaskResp(task))
}

// Delete removes a task.  Requires content-edit rights on the project.
func (h *TaskHandler) Delete(c echo.Context) error {
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

	task, err := h.Tasks.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	project, res, err := h.loadProject(ctx, task.ProjectID)
	if err != nil {
		return fail(c, err)
	}
	if !policy.CanAccess(res, p) {
		return notFound(c)
	}
	if !policy.CanEditContent(res, p) {
		return fail(c, service.ErrForbidden)
	}

	if err := h.Tasks.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	h.Cache.Delete(ctx, cache.ProjectKey(project.ID))
	return c.NoContent(http.StatusNoContent)
}

// loadProject fetches the parent project and its policy tuple, bypassing
// nothing: the same read-through path the project handler uses.
func (h *TaskHandler) loadProject(ctx context.Context, id uint64) (model.Project, policy.Resource, error) {
	ph := ProjectHandler{Projects: h.Projects, Cache: h.Cache}
	p, err := ph.load(ctx, id)
	if err != nil {
		return model.Project{}, policy.Resource{}, err
	}
	return p, policy.FromProject(p), nil
}
