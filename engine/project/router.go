package project

import (
	"net/http"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/userctx"
	"github.com/gin-gonic/gin"
)

// Handler handles project HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a project handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the project routes under the API base.
func RegisterRoutes(apiBase *gin.RouterGroup, service *Service) {
	handler := NewHandler(service)
	projects := apiBase.Group("/projects")
	{
		projects.GET("/:project_id", handler.Get)
		projects.PATCH("/:project_id/coordinates", handler.UpdateCoordinates)
	}
}

// Get handles GET /projects/{project_id}.
func (h *Handler) Get(c *gin.Context) {
	projectID, err := core.ParseID(c.Param("project_id"))
	if err != nil {
		respondError(c, core.Validationf("invalid project id: %v", err))
		return
	}
	p, err := h.service.Get(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// UpdateCoordinates handles PATCH /projects/{project_id}/coordinates.
func (h *Handler) UpdateCoordinates(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	projectID, err := core.ParseID(c.Param("project_id"))
	if err != nil {
		respondError(c, core.Validationf("invalid project id: %v", err))
		return
	}
	var input UpdateCoordinatesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	p, err := h.service.UpdateCoordinates(c.Request.Context(), actor, projectID, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

func respondError(c *gin.Context, err error) {
	problem := core.ProblemFromError(err)
	c.JSON(problem.Status, core.BuildProblemBody(problem))
}
