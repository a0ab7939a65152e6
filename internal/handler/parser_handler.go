package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medparse/internal/parser"
	"medparse/internal/port"
)

// APIKeyHeader carries a per-request backend API key for catalog lookups.
const APIKeyHeader = "X-Parser-API-Key"

// ParserHandler exposes the parser registry.
type ParserHandler struct {
	registry *parser.Registry
}

// NewParserHandler creates a new ParserHandler.
func NewParserHandler(registry *parser.Registry) *ParserHandler {
	return &ParserHandler{registry: registry}
}

// List handles GET /api/v1/parsers
func (h *ParserHandler) List(c *gin.Context) {
	RespondOK(c, h.registry.Descriptors())
}

// VisionModels handles GET /api/v1/parsers/vision/:name/models
func (h *ParserHandler) VisionModels(c *gin.Context) {
	backend, err := h.registry.Vision(c.Param("name"))
	if err != nil {
		HandleError(c, err)
		return
	}

	models, err := backend.Models(c.Request.Context(), port.BackendOptions{
		APIKey: c.GetHeader(APIKeyHeader),
		APIURL: c.Query("api_url"),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, models)
}

// DocumentModels handles GET /api/v1/parsers/document/:name/models
func (h *ParserHandler) DocumentModels(c *gin.Context) {
	backend, err := h.registry.Document(c.Param("name"))
	if err != nil {
		HandleError(c, err)
		return
	}

	models, err := backend.Models(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	if models == nil {
		RespondError(c, http.StatusNotFound, "NO_MODELS", "parser has no models")
		return
	}
	RespondOK(c, models)
}
