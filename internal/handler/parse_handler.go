package handler

import (
	"bytes"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"medparse/internal/export"
	"medparse/internal/pipeline"
	"medparse/internal/source"
)

// ParseHandler handles health document parsing endpoints.
type ParseHandler struct {
	service pipeline.Service
	sources source.Policy
}

// NewParseHandler creates a new ParseHandler. File references from callers
// are checked against sources before any file is opened or fetched.
func NewParseHandler(service pipeline.Service, sources source.Policy) *ParseHandler {
	return &ParseHandler{service: service, sources: sources}
}

// Parse handles POST /api/v1/health-data/parse
func (h *ParseHandler) Parse(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required")
		return
	}
	if _, err := h.sources.Check(req.File); err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.service.ParseHealthData(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// Export handles POST /api/v1/health-data/export?format=csv|xlsx
func (h *ParseHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or xlsx")
		return
	}

	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required")
		return
	}
	if _, err := h.sources.Check(req.File); err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.service.ParseHealthData(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}

	name := path.Base(req.File)
	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = export.WriteXLSX(&buf, name, result)
	} else {
		err = export.WriteCSV(&buf, name, result)
	}
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.BuildFilename(name, format)+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
