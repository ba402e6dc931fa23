package attendance

import (
	"net/http"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/engine/userctx"
	"github.com/gin-gonic/gin"
)

// Handler handles attendance HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates an attendance handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the dispatch attendance routes under the API base.
func RegisterRoutes(apiBase *gin.RouterGroup, service *Service) {
	handler := NewHandler(service)
	dispatch := apiBase.Group("/dispatch")
	{
		dispatch.POST("/attendance", handler.Clock)
		dispatch.POST("/attendance/supervisor", handler.ClockSupervisor)
		dispatch.POST("/attendance/direct", handler.ClockDirect)
		dispatch.GET("/attendance/direct/:date", handler.DirectDay)
		dispatch.GET("/attendance/pending", handler.ListPending)
		dispatch.POST("/attendance/:id/approve", handler.Approve)
		dispatch.POST("/attendance/:id/reject", handler.Reject)
		dispatch.PATCH("/attendance/:id", handler.UpdatePending)
		dispatch.GET("/shifts/:id/attendance", handler.ListByShift)
	}
}

// Clock handles POST /dispatch/attendance.
func (h *Handler) Clock(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	var input ClockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	record, err := h.service.Clock(c.Request.Context(), actor, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": record})
}

// ClockSupervisor handles POST /dispatch/attendance/supervisor.
func (h *Handler) ClockSupervisor(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	var input SupervisorClockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	record, err := h.service.ClockOnBehalf(c.Request.Context(), actor, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": record})
}

// ClockDirect handles POST /dispatch/attendance/direct.
func (h *Handler) ClockDirect(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	var input DirectClockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	record, err := h.service.ClockDirect(c.Request.Context(), actor, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": record})
}

// DirectDay handles GET /dispatch/attendance/direct/{date}.
func (h *Handler) DirectDay(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.service.DirectDay(c.Request.Context(), actor, c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

// ListPending handles GET /dispatch/attendance/pending.
func (h *Handler) ListPending(c *gin.Context) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.service.ListPending(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

type approveBody struct {
	Note string `json:"note,omitempty"`
}

// Approve handles POST /dispatch/attendance/{id}/approve.
func (h *Handler) Approve(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	var body approveBody
	_ = c.ShouldBindJSON(&body) // body optional
	record, err := h.service.Approve(c.Request.Context(), actor, id, body.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

type rejectBody struct {
	Reason string `json:"reason"`
}

// Reject handles POST /dispatch/attendance/{id}/reject.
func (h *Handler) Reject(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	var body rejectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	record, err := h.service.Reject(c.Request.Context(), actor, id, body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// UpdatePending handles PATCH /dispatch/attendance/{id}.
func (h *Handler) UpdatePending(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	var input UpdatePendingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, core.Validationf("invalid request body: %v", err))
		return
	}
	record, err := h.service.UpdatePending(c.Request.Context(), actor, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// ListByShift handles GET /dispatch/shifts/{id}/attendance.
func (h *Handler) ListByShift(c *gin.Context) {
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, core.Validationf("invalid shift id: %v", err))
		return
	}
	records, err := h.service.ListByShift(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (h *Handler) actorAndID(c *gin.Context) (*user.User, core.ID, bool) {
	actor, err := userctx.UserFromContext(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return nil, "", false
	}
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, core.Validationf("invalid attendance id: %v", err))
		return nil, "", false
	}
	return actor, id, true
}

func respondError(c *gin.Context, err error) {
	problem := core.ProblemFromError(err)
	c.JSON(problem.Status, core.BuildProblemBody(problem))
}
