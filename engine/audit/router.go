package audit

import (
	"net/http"
	"strconv"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/gin-gonic/gin"
)

const defaultTimelineLimit = 50

// Handler serves the project audit timeline.
type Handler struct {
	timeline *Timeline
}

// NewHandler creates an audit timeline handler.
func NewHandler(timeline *Timeline) *Handler {
	return &Handler{timeline: timeline}
}

// RegisterRoutes mounts the timeline route under the API base.
func RegisterRoutes(apiBase *gin.RouterGroup, timeline *Timeline) {
	handler := NewHandler(timeline)
	apiBase.GET("/projects/:project_id/audit-logs", handler.ProjectTimeline)
}

// ProjectTimeline handles GET /projects/{pid}/audit-logs.
func (h *Handler) ProjectTimeline(c *gin.Context) {
	projectID, err := core.ParseID(c.Param("project_id"))
	if err != nil {
		respondError(c, core.Validationf("invalid project id: %v", err))
		return
	}
	q := &TimelineQuery{
		ProjectID: projectID,
		Section:   c.Query("section"),
		Limit:     intQuery(c, "limit", defaultTimelineLimit),
		Offset:    intQuery(c, "offset", 0),
	}
	if month := c.Query("month"); month != "" {
		parsed, err := timeutil.ParseDate(month + "-01")
		if err != nil {
			respondError(c, core.Validationf("invalid month %q (want YYYY-MM)", month))
			return
		}
		q.Month = parsed
	}
	entries, err := h.timeline.ForProject(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func respondError(c *gin.Context, err error) {
	problem := core.ProblemFromError(err)
	c.JSON(problem.Status, core.BuildProblemBody(problem))
}
