package domain

import "errors"

var (
	ErrUnsupportedFileType        = errors.New("unsupported file type")
	ErrRasterizationFailed        = errors.New("document rasterization failed")
	ErrInvalidSource              = errors.New("invalid document source")
	ErrInvalidModalityCombination = errors.New("at least one of image or text must be included")
	ErrInvalidParser              = errors.New("invalid parser")
	ErrInvalidModel               = errors.New("invalid parser model")
	ErrBackendUnavailable         = errors.New("inference backend unavailable")
	ErrModelNotFound              = errors.New("model not found in backend catalog")
	ErrInferenceTimeout           = errors.New("inference timed out")
	ErrMalformedOutput            = errors.New("model output is not valid JSON")
	ErrSchemaViolation            = errors.New("extraction does not match schema")
	ErrStorageFailed              = errors.New("page image storage failed")
)
