// Package response renders JSON responses and maps service errors onto
// HTTP status codes.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/lifecycle"
	"github.com/trellisdata/trellis/internal/registry"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// List wraps items and a total count in the standard list envelope.
func List(w http.ResponseWriter, items interface{}, total int64) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// Error maps err to an HTTP status and writes the error envelope. Unmapped
// errors become 500s and are logged; their details never reach the client.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := classify(err)

	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		JSON(w, status, map[string]interface{}{
			"error":   code,
			"message": "An unexpected error occurred",
		})
		return
	}

	JSON(w, status, map[string]interface{}{
		"error":   code,
		"message": err.Error(),
	})
}

// BadRequest writes a 400 with the given message.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":   "bad_request",
		"message": message,
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrNotFound),
		errors.Is(err, collection.ErrNotFound),
		errors.Is(err, lifecycle.ErrFieldNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, collection.ErrConflict),
		errors.Is(err, lifecycle.ErrFieldConflict),
		errors.Is(err, engine.ErrUniqueViolation),
		errors.Is(err, lifecycle.ErrAlreadyTrashed),
		errors.Is(err, lifecycle.ErrNotTrashed):
		return http.StatusConflict, "conflict"
	case errors.Is(err, lifecycle.ErrSystemCollection):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, registry.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}
