package handler

import (
	"net/http"

	"buildtrack/internal/middleware"
	"buildtrack/internal/model"
	"buildtrack/internal/service"
	"buildtrack/pkg/pagination"
	"buildtrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireRole(model.RolePlanner, model.RoleForeman))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns one page of the audit trail
// @Summary      Get audit logs
// @Description  Lists volume-affecting changes, newest first, with the acting user
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Param        action     query     string  false  "Action, e.g. APPROVE_WORK"
// @Param        entity_id  query     string  false  "Entity ID"
// @Param        user_id    query     string  false  "Acting user ID"
// @Success      200        {object}  response.Response{data=[]service.AuditLogResponse,meta=pagination.Meta}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditQuery{
		Page:     p.Page,
		Limit:    p.Limit,
		Action:   c.Query("action"),
		EntityID: c.Query("entity_id"),
		UserID:   c.Query("user_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Page(http.StatusOK, logs, p.Meta(total)))
}
