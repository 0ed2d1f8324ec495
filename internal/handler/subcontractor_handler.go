package handler

import (
	"net/http"

	"buildtrack/internal/middleware"
	"buildtrack/internal/model"
	"buildtrack/internal/service"
	"buildtrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type SubcontractorHandler struct {
	reporting service.ReportingService
	progress  service.ProgressService
}

func NewSubcontractorHandler(reporting service.ReportingService, progress service.ProgressService) *SubcontractorHandler {
	return &SubcontractorHandler{reporting: reporting, progress: progress}
}

func (h *SubcontractorHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/subcontractor")
	group.Use(middleware.RequireRole(model.RoleSubcontractor))
	{
		group.GET("/assignments", h.ListAssignments)
		group.POST("/submit-work", h.SubmitWork)
		group.GET("/work-history", h.WorkHistory)
		group.GET("/statistics", h.Statistics)
	}
}

// ListAssignments
// @Summary      Assignments of the current subcontractor
// @Tags         subcontractor
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "assigned, in_progress, completed or rejected"
// @Success      200     {object}  response.Response{data=[]service.AssignmentProgress}
// @Router       /api/subcontractor/assignments [get]
func (h *SubcontractorHandler) ListAssignments(c *gin.Context) {
	rows, err := h.reporting.ListAssignments(c.Request.Context(), middleware.CurrentUserID(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// SubmitWork
// @Summary      Report completed volume
// @Tags         subcontractor
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubmitWorkRequest  true  "Report"
// @Success      201      {object}  response.Response{data=model.CompletedWork}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response{data=service.CapacityError}
// @Router       /api/subcontractor/submit-work [post]
func (h *SubcontractorHandler) SubmitWork(c *gin.Context) {
	var req service.SubmitWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	report, err := h.reporting.SubmitWork(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, report))
}

// WorkHistory
// @Summary      Reports filed by the current subcontractor
// @Tags         subcontractor
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  false  "YYYY-MM-DD"
// @Param        to    query     string  false  "YYYY-MM-DD"
// @Success      200   {object}  response.Response{data=[]model.CompletedWork}
// @Router       /api/subcontractor/work-history [get]
func (h *SubcontractorHandler) WorkHistory(c *gin.Context) {
	filter := service.WorkHistoryFilter{From: c.Query("from"), To: c.Query("to")}
	works, err := h.reporting.WorkHistory(c.Request.Context(), middleware.CurrentUserID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, works))
}

// Statistics
// @Summary      Volume statistics of the current subcontractor
// @Tags         subcontractor
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.SubcontractorStatistics}
// @Router       /api/subcontractor/statistics [get]
func (h *SubcontractorHandler) Statistics(c *gin.Context) {
	stats, err := h.progress.SubcontractorStatistics(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
