package handler

import (
	"net/http"
	"time"

	"buildtrack/internal/middleware"
	"buildtrack/internal/model"
	"buildtrack/internal/service"
	"buildtrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type ForemanHandler struct {
	assignments service.AssignmentService
	approvals   service.ApprovalService
	imports     service.ImportService
	progress    service.ProgressService
}

func NewForemanHandler(assignments service.AssignmentService, approvals service.ApprovalService, imports service.ImportService, progress service.ProgressService) *ForemanHandler {
	return &ForemanHandler{assignments: assignments, approvals: approvals, imports: imports, progress: progress}
}

func (h *ForemanHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/foreman")
	group.Use(middleware.RequireRole(model.RoleForeman))
	{
		group.GET("/sections/:id/works", h.ListWorks)
		group.GET("/sections/:id/check-updates", h.CheckUpdates)
		group.POST("/assign-work", h.AssignWork)
		group.GET("/sent-assignments", h.SentAssignments)
		group.POST("/assignments/:id/cancel", h.CancelAssignment)
		group.GET("/pending-approvals", h.PendingApprovals)
		group.POST("/approve-work", h.ApproveWork)
	}
}

// ListWorks
// @Summary      List work items of a section with remaining volume
// @Tags         foreman
// @Security     BearerAuth
// @Produce      json
// @Param        id              path      string  true   "Section ID"
// @Param        floor           query     string  false  "Floor"
// @Param        work_type       query     string  false  "Work type"
// @Param        active_from     query     string  false  "YYYY-MM-DD"
// @Param        active_to       query     string  false  "YYYY-MM-DD"
// @Param        completed_only  query     bool    false  "Only items with approved progress"
// @Success      200             {object}  response.Response{data=[]service.WorkItemProgress}
// @Router       /api/foreman/sections/{id}/works [get]
func (h *ForemanHandler) ListWorks(c *gin.Context) {
	listWorks(c, h.progress)
}

// CheckUpdates tells a client whether the section's schedule changed
// @Summary      Check for a newer schedule
// @Tags         foreman
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Section ID"
// @Param        since  query     string  false  "RFC3339 timestamp of the last seen upload"
// @Success      200    {object}  response.Response{data=service.UpdateStatus}
// @Router       /api/foreman/sections/{id}/check-updates [get]
func (h *ForemanHandler) CheckUpdates(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "since must be an RFC3339 timestamp"))
			return
		}
		since = &t
	}
	status, err := h.imports.CheckUpdates(c.Request.Context(), c.Param("id"), since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, status))
}

// AssignWork
// @Summary      Assign volume to subcontractors
// @Description  All assignments are created or none; the sum must fit the remaining volume
// @Tags         foreman
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AssignWorkRequest  true  "Assignments"
// @Success      201      {object}  response.Response{data=[]model.Assignment}
// @Failure      422      {object}  response.Response{data=service.CapacityError}
// @Router       /api/foreman/assign-work [post]
func (h *ForemanHandler) AssignWork(c *gin.Context) {
	var req service.AssignWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	created, err := h.assignments.AssignWork(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// SentAssignments
// @Summary      Assignments created by the current foreman
// @Tags         foreman
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.SentAssignment}
// @Router       /api/foreman/sent-assignments [get]
func (h *ForemanHandler) SentAssignments(c *gin.Context) {
	rows, err := h.assignments.ListForemanAssignments(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// CancelAssignment
// @Summary      Cancel an open assignment
// @Tags         foreman
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Assignment ID"
// @Success      200  {object}  response.Response{data=model.Assignment}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/foreman/assignments/{id}/cancel [post]
func (h *ForemanHandler) CancelAssignment(c *gin.Context) {
	a, err := h.assignments.CancelAssignment(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, a))
}

// PendingApprovals
// @Summary      Reports waiting for the current foreman
// @Tags         foreman
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.PendingApproval}
// @Router       /api/foreman/pending-approvals [get]
func (h *ForemanHandler) PendingApprovals(c *gin.Context) {
	rows, err := h.approvals.ListPendingApprovals(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// ApproveWork
// @Summary      Approve or reject a report
// @Tags         foreman
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ApproveWorkRequest  true  "Decision"
// @Success      200      {object}  response.Response{data=service.ApprovalResult}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response{data=service.CapacityError}
// @Router       /api/foreman/approve-work [post]
func (h *ForemanHandler) ApproveWork(c *gin.Context) {
	var req service.ApproveWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	result, err := h.approvals.ApproveWork(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
