package http

import (
	"net/http"

	"github.com/minirel/minirel/internal/errors"
)

// StatusFromError maps an engine error onto an HTTP status code.
func StatusFromError(err error) int {
	switch errors.GetCategory(err) {
	case errors.ErrCategorySchema, errors.ErrCategoryType, errors.ErrCategoryStatement:
		return http.StatusBadRequest
	case errors.ErrCategoryNotFound:
		return http.StatusNotFound
	case errors.ErrCategoryConstraint:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError writes err with its structured code and category.
func writeEngineError(w http.ResponseWriter, err error, requestID string) {
	resp := ErrorResponse{
		Error:     errors.Message(err),
		Code:      errors.GetCode(err),
		Category:  string(errors.GetCategory(err)),
		RequestID: requestID,
	}
	var e *errors.Error
	if errors.As(err, &e) {
		resp.Details = e.Details
	}
	writeJSON(w, StatusFromError(err), resp)
}
