package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"medparse/internal/domain"
	"medparse/internal/middleware"
	"medparse/internal/parser"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var be *parser.BackendError
	switch {
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf, jpg, png, webp, gif"
	case errors.Is(err, domain.ErrInvalidSource):
		return http.StatusBadRequest, "INVALID_SOURCE", "file could not be read from the given path or URL"
	case errors.Is(err, domain.ErrInvalidModalityCombination):
		return http.StatusBadRequest, "INVALID_MODALITY", "at least one of image or text must be included"
	case errors.Is(err, domain.ErrInvalidParser):
		return http.StatusBadRequest, "INVALID_PARSER", "unknown or disabled parser"
	case errors.Is(err, domain.ErrInvalidModel):
		return http.StatusBadRequest, "INVALID_MODEL", "a model is required for the selected parser"
	case errors.Is(err, domain.ErrRasterizationFailed):
		return http.StatusUnprocessableEntity, "RASTERIZATION_FAILED", "document could not be converted to page images"
	case errors.Is(err, domain.ErrModelNotFound):
		if errors.As(err, &be) {
			return http.StatusServiceUnavailable, "MODEL_NOT_FOUND", be.Error()
		}
		return http.StatusServiceUnavailable, "MODEL_NOT_FOUND", "model not found in backend catalog"
	case errors.Is(err, domain.ErrBackendUnavailable):
		if errors.As(err, &be) {
			return http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", be.Error()
		}
		return http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "inference backend unavailable"
	case errors.Is(err, domain.ErrSchemaViolation):
		return http.StatusBadGateway, "SCHEMA_VIOLATION", "extraction does not match the result schema"
	case errors.Is(err, domain.ErrStorageFailed):
		return http.StatusInternalServerError, "STORAGE_FAILED", "page image storage failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	entry := log.WithFields(log.Fields{"request_id": middleware.GetRequestID(c), "code": code})
	if status >= 500 {
		entry.WithError(err).Error("handler.HandleError: request failed")
	} else {
		entry.WithError(err).Info("handler.HandleError: rejected request")
	}
	RespondError(c, status, code, msg)
}
