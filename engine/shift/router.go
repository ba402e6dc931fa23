package shift

import (
	"net/http"
	"strings"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/userctx"
	"github.com/gin-gonic/gin"
)

// Handler handles shift HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a shift handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the dispatch shift routes under the API base.
func RegisterRoutes(apiBase *gin.RouterGroup, service *Service) {
	handler := NewHandler(service)
	dispatch := apiBase.Group("/dispatch")
	{
		dispatch.POST("/projects/:project_id/shifts", handler.CreateForProject)
		dispatch.POST("/shifts/without-project", handler.CreateWithoutProject)
		dispatch.GET("/projects/:project_id/shifts", handler.ListByProject)
		dispatch.GET("/shifts", handler.ListGlobal)
		dispatch.GET("/shifts/:id", handler.Get)
		dispatch.PATCH("/shifts/:id", handler.Update)
		dispatch.DELETE("/shifts/:id", handler.Delete)
	}
}

// CreateForProject handles POST /dispatch/projects/{pid}/shifts.
func (h *Handler) CreateForProject(c *gin.Context) {
	projectID, err := core.ParseID(c.Param("project_id"))
	if err != nil {
		respondError(c, core.Validationf("invalid project id: %v", err))
		return
	}
	var input CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	input.ProjectID = projectID
	h.create(c, &input)
}

// CreateWithoutProject handles POST /dispatch/shifts/without-project:
// job-typed work hosted by the sentinel General project. The service
// resolves the sentinel when no project id is supplied.
func (h *Handler) CreateWithoutProject(c *gin.Context) {
	var input CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	h.create(c, &input)
}

func (h *Handler) create(c *gin.Context, input *CreateInput) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	created, err := h.service.Create(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

// ListByProject handles GET /dispatch/projects/{pid}/shifts.
func (h *Handler) ListByProject(c *gin.Context) {
	projectID, err := core.ParseID(c.Param("project_id"))
	if err != nil {
		respondError(c, core.Validationf("invalid project id: %v", err))
		return
	}
	filter, err := filterFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	filter.ProjectID = projectID
	h.list(c, filter)
}

// ListGlobal handles GET /dispatch/shifts.
func (h *Handler) ListGlobal(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	h.list(c, filter)
}

func (h *Handler) list(c *gin.Context, filter *ListFilter) {
	shifts, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": shifts})
}

// Get handles GET /dispatch/shifts/{id}.
func (h *Handler) Get(c *gin.Context) {
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, core.Validationf("invalid shift id: %v", err))
		return
	}
	found, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": found})
}

// Update handles PATCH /dispatch/shifts/{id}.
func (h *Handler) Update(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, core.Validationf("invalid shift id: %v", err))
		return
	}
	var input UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	updated, err := h.service.Update(c.Request.Context(), actor, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// Delete handles DELETE /dispatch/shifts/{id}.
func (h *Handler) Delete(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, core.Validationf("invalid shift id: %v", err))
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "shift deleted"})
}

// filterFromQuery parses date_range=YYYY-MM-DD,YYYY-MM-DD and worker_id.
func filterFromQuery(c *gin.Context) (*ListFilter, error) {
	filter := &ListFilter{}
	if raw := c.Query("date_range"); raw != "" {
		parts := strings.Split(raw, ",")
		if len(parts) != 2 {
			return nil, core.Validationf("invalid date_range %q (want YYYY-MM-DD,YYYY-MM-DD)", raw)
		}
		from, err := timeutil.ParseDate(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, core.Validationf("%v", err)
		}
		to, err := timeutil.ParseDate(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, core.Validationf("%v", err)
		}
		filter.From, filter.To = from, to
	}
	if raw := c.Query("worker_id"); raw != "" {
		workerID, err := core.ParseID(raw)
		if err != nil {
			return nil, core.Validationf("invalid worker_id: %v", err)
		}
		filter.WorkerID = workerID
	}
	return filter, nil
}

func respondError(c *gin.Context, err error) {
	problem := core.ProblemFromError(err)
	c.JSON(problem.Status, core.BuildProblemBody(problem))
}
