package timesheet

import (
	"net/http"
	"strconv"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/engine/userctx"
	"github.com/gin-gonic/gin"
)

// Handler handles timesheet HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a timesheet handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the timesheet routes under the API base.
func RegisterRoutes(apiBase *gin.RouterGroup, service *Service) {
	handler := NewHandler(service)
	projects := apiBase.Group("/projects")
	{
		projects.GET("/:project_id/timesheet", handler.ListProject)
		projects.POST("/:project_id/timesheet", handler.CreateManual)
		projects.PATCH("/:project_id/timesheet/:id", handler.Update)
		projects.DELETE("/:project_id/timesheet/:id", handler.Delete)
		projects.PATCH("/:project_id/timesheet/:id/approve", handler.Approve)
		projects.GET("/:project_id/timesheet/logs", handler.Logs)
		projects.GET("/timesheet/summary", handler.Summary)
		projects.GET("/timesheet/user", handler.UserEntries)
	}
	apiBase.GET("/dispatch/attendance/weekly-summary", handler.WeeklySummary)
}

// ListProject handles GET /projects/{project_id}/timesheet.
func (h *Handler) ListProject(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}
	query := &ListQuery{Month: c.Query("month")}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := core.ParseID(raw)
		if err != nil {
			respondError(c, core.Validationf("invalid user id: %v", err))
			return
		}
		query.UserID = userID
	}
	rows, err := h.service.ListProject(c.Request.Context(), projectID, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// CreateManual handles POST /projects/{project_id}/timesheet.
func (h *Handler) CreateManual(c *gin.Context) {
	actor, projectID, ok := h.actorAndProject(c)
	if !ok {
		return
	}
	var input CreateManualInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	entry, err := h.service.CreateManual(c.Request.Context(), actor, projectID, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

// Update handles PATCH /projects/{project_id}/timesheet/{id}.
func (h *Handler) Update(c *gin.Context) {
	actor, projectID, ok := h.actorAndProject(c)
	if !ok {
		return
	}
	var input UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	entry, err := h.service.Update(c.Request.Context(), actor, projectID, c.Param("id"), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

type approveBody struct {
	Approved *bool `json:"approved,omitempty"`
}

// Approve handles PATCH /projects/{project_id}/timesheet/{id}/approve.
// An absent or true "approved" field approves; false unapproves.
func (h *Handler) Approve(c *gin.Context) {
	actor, projectID, ok := h.actorAndProject(c)
	if !ok {
		return
	}
	var body approveBody
	_ = c.ShouldBindJSON(&body)
	approve := body.Approved == nil || *body.Approved
	entry, err := h.service.Approve(c.Request.Context(), actor, projectID, c.Param("id"), approve)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

// Delete handles DELETE /projects/{project_id}/timesheet/{id}.
func (h *Handler) Delete(c *gin.Context) {
	actor, projectID, ok := h.actorAndProject(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, projectID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Logs handles GET /projects/{project_id}/timesheet/logs.
func (h *Handler) Logs(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	logs, err := h.service.Logs(c.Request.Context(), projectID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// Summary handles GET /projects/timesheet/summary.
func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// UserEntries handles GET /projects/timesheet/user.
func (h *Handler) UserEntries(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	var userID core.ID
	if raw := c.Query("user_id"); raw != "" {
		userID, err = core.ParseID(raw)
		if err != nil {
			respondError(c, core.Validationf("invalid user id: %v", err))
			return
		}
	}
	entries, err := h.service.UserEntries(c.Request.Context(), actor, userID, c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// WeeklySummary handles GET /dispatch/attendance/weekly-summary.
func (h *Handler) WeeklySummary(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := h.service.WeeklySummary(c.Request.Context(), actor, c.Query("week_start"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (h *Handler) projectID(c *gin.Context) (core.ID, bool) {
	projectID, err := core.ParseID(c.Param("project_id"))
	if err != nil {
		respondError(c, core.Validationf("invalid project id: %v", err))
		return "", false
	}
	return projectID, true
}

func (h *Handler) actorAndProject(c *gin.Context) (*user.User, core.ID, bool) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return nil, "", false
	}
	projectID, ok := h.projectID(c)
	if !ok {
		return nil, "", false
	}
	return actor, projectID, true
}

func respondError(c *gin.Context, err error) {
	problem := core.ProblemFromError(err)
	c.JSON(problem.Status, core.BuildProblemBody(problem))
}
