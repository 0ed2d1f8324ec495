package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"buildtrack/internal/middleware"
	"buildtrack/internal/model"
	"buildtrack/internal/service"
	"buildtrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// maxUploadSize caps schedule uploads.
const maxUploadSize = 32 << 20

type PlannerHandler struct {
	hierarchy service.HierarchyService
	imports   service.ImportService
	progress  service.ProgressService
	export    service.ExportService
}

func NewPlannerHandler(hierarchy service.HierarchyService, imports service.ImportService, progress service.ProgressService, export service.ExportService) *PlannerHandler {
	return &PlannerHandler{hierarchy: hierarchy, imports: imports, progress: progress, export: export}
}

func (h *PlannerHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/planner")
	group.Use(middleware.RequireRole(model.RolePlanner))
	{
		group.GET("/objects", h.ListObjects)
		group.POST("/objects", h.CreateObject)
		group.DELETE("/objects/:id", h.DeleteObject)

		group.GET("/objects/:id/queues", h.ListQueues)
		group.POST("/objects/:id/queues", h.CreateQueue)
		group.DELETE("/queues/:id", h.DeleteQueue)

		group.GET("/queues/:id/sections", h.ListSections)
		group.POST("/queues/:id/sections", h.CreateSection)
		group.DELETE("/sections/:id", h.DeleteSection)

		group.GET("/sections/:id/xml-files", h.ListXmlFiles)
		group.POST("/sections/:id/xml-files", h.UploadXmlFile)
		group.DELETE("/xml-files/:id", h.DeleteXmlFile)

		group.GET("/sections/:id/works", h.ListWorks)
		group.GET("/sections/:id/export", h.ExportSchedule)
		group.GET("/sections/:id/report.xlsx", h.ExportReport)
		group.GET("/sections/:id/report.pdf", h.ExportReportPDF)
	}
}

// ListObjects
// @Summary      List objects
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]repository.ObjectSummary}
// @Router       /api/planner/objects [get]
func (h *PlannerHandler) ListObjects(c *gin.Context) {
	objects, err := h.hierarchy.ListObjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, objects))
}

// CreateObject
// @Summary      Create object
// @Tags         planner
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateObjectRequest  true  "Object"
// @Success      201      {object}  response.Response{data=model.Object}
// @Failure      400      {object}  response.Response
// @Router       /api/planner/objects [post]
func (h *PlannerHandler) CreateObject(c *gin.Context) {
	var req service.CreateObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	obj, err := h.hierarchy.CreateObject(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, obj))
}

// DeleteObject removes an object and everything below it
// @Summary      Delete object
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Object ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/planner/objects/{id} [delete]
func (h *PlannerHandler) DeleteObject(c *gin.Context) {
	if err := h.hierarchy.DeleteObject(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Object deleted"))
}

// ListQueues
// @Summary      List queues of an object
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Object ID"
// @Success      200  {object}  response.Response{data=[]model.Queue}
// @Failure      404  {object}  response.Response
// @Router       /api/planner/objects/{id}/queues [get]
func (h *PlannerHandler) ListQueues(c *gin.Context) {
	queues, err := h.hierarchy.ListQueues(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, queues))
}

// CreateQueue
// @Summary      Create queue
// @Tags         planner
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Object ID"
// @Param        payload  body      service.CreateNumberedRequest  true  "Queue"
// @Success      201      {object}  response.Response{data=model.Queue}
// @Failure      409      {object}  response.Response
// @Router       /api/planner/objects/{id}/queues [post]
func (h *PlannerHandler) CreateQueue(c *gin.Context) {
	var req service.CreateNumberedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	queue, err := h.hierarchy.CreateQueue(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, queue))
}

// DeleteQueue
// @Summary      Delete queue
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Queue ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/planner/queues/{id} [delete]
func (h *PlannerHandler) DeleteQueue(c *gin.Context) {
	if err := h.hierarchy.DeleteQueue(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Queue deleted"))
}

// ListSections
// @Summary      List sections of a queue
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Queue ID"
// @Success      200  {object}  response.Response{data=[]repository.SectionSummary}
// @Failure      404  {object}  response.Response
// @Router       /api/planner/queues/{id}/sections [get]
func (h *PlannerHandler) ListSections(c *gin.Context) {
	sections, err := h.hierarchy.ListSections(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sections))
}

// CreateSection
// @Summary      Create section
// @Tags         planner
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Queue ID"
// @Param        payload  body      service.CreateNumberedRequest  true  "Section"
// @Success      201      {object}  response.Response{data=model.Section}
// @Failure      409      {object}  response.Response
// @Router       /api/planner/queues/{id}/sections [post]
func (h *PlannerHandler) CreateSection(c *gin.Context) {
	var req service.CreateNumberedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	section, err := h.hierarchy.CreateSection(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, section))
}

// DeleteSection
// @Summary      Delete section
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Section ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/planner/sections/{id} [delete]
func (h *PlannerHandler) DeleteSection(c *gin.Context) {
	if err := h.hierarchy.DeleteSection(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Section deleted"))
}

// ListXmlFiles
// @Summary      List uploaded schedules of a section
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Section ID"
// @Success      200  {object}  response.Response{data=[]model.XmlFile}
// @Router       /api/planner/sections/{id}/xml-files [get]
func (h *PlannerHandler) ListXmlFiles(c *gin.Context) {
	files, err := h.imports.ListXmlFiles(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, files))
}

// UploadXmlFile imports a schedule into a section
// @Summary      Import schedule
// @Description  Uploads a P6 XML schedule; existing work items keep their completed volume
// @Tags         planner
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id       path      string  true  "Section ID"
// @Param        xmlFile  formData  file    true  "Schedule file"
// @Success      201      {object}  response.Response{data=service.ImportResult}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response{data=service.CapacityError}
// @Router       /api/planner/sections/{id}/xml-files [post]
func (h *PlannerHandler) UploadXmlFile(c *gin.Context) {
	header, err := c.FormFile("xmlFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "xmlFile is required"))
		return
	}
	if header.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "xmlFile is too large"))
		return
	}
	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".xml" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "only .xml files are accepted"))
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Failed to read upload: "+err.Error()))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Failed to read upload: "+err.Error()))
		return
	}

	result, err := h.imports.ImportSchedule(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), header.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// DeleteXmlFile
// @Summary      Delete uploaded schedule
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "XML file ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/planner/xml-files/{id} [delete]
func (h *PlannerHandler) DeleteXmlFile(c *gin.Context) {
	if err := h.imports.DeleteXmlFile(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "File deleted"))
}

// ListWorks
// @Summary      List work items of a section with progress
// @Tags         planner
// @Security     BearerAuth
// @Produce      json
// @Param        id              path      string  true   "Section ID"
// @Param        floor           query     string  false  "Floor"
// @Param        work_type       query     string  false  "Work type"
// @Param        active_from     query     string  false  "YYYY-MM-DD"
// @Param        active_to       query     string  false  "YYYY-MM-DD"
// @Param        completed_only  query     bool    false  "Only items with approved progress"
// @Success      200             {object}  response.Response{data=[]service.WorkItemProgress}
// @Router       /api/planner/sections/{id}/works [get]
func (h *PlannerHandler) ListWorks(c *gin.Context) {
	listWorks(c, h.progress)
}

// ExportSchedule
// @Summary      Export schedule
// @Tags         planner
// @Security     BearerAuth
// @Produce      application/xml
// @Param        id    path   string  true   "Section ID"
// @Param        mode  query  string  false  "full (default) or facts"
// @Success      200   {file}    file
// @Failure      404   {object}  response.Response
// @Router       /api/planner/sections/{id}/export [get]
func (h *PlannerHandler) ExportSchedule(c *gin.Context) {
	file, err := h.export.ExportSchedule(c.Request.Context(), c.Param("id"), c.DefaultQuery("mode", service.ExportFull))
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, file)
}

// ExportReport
// @Summary      Export progress workbook
// @Tags         planner
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id   path      string  true  "Section ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/planner/sections/{id}/report.xlsx [get]
func (h *PlannerHandler) ExportReport(c *gin.Context) {
	file, err := h.export.ExportReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, file)
}

// ExportReportPDF
// @Summary      Export progress report as PDF
// @Tags         planner
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path      string  true  "Section ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/planner/sections/{id}/report.pdf [get]
func (h *PlannerHandler) ExportReportPDF(c *gin.Context) {
	file, err := h.export.ExportReportPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, file)
}

func listWorks(c *gin.Context, progress service.ProgressService) {
	query := service.WorkItemQuery{
		Floor:         c.Query("floor"),
		WorkType:      c.Query("work_type"),
		ActiveFrom:    c.Query("active_from"),
		ActiveTo:      c.Query("active_to"),
		CompletedOnly: c.Query("completed_only") == "true",
	}
	items, err := progress.ListWorkItems(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

func sendFile(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
