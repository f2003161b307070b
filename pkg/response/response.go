// Package response renders the `{error, message, code, details?}` envelope
// used across the API surface, grounded on the teacher's own Gin JSON
// rendering helpers but collapsed into the single envelope shape the spec
// calls for instead of the teacher's separate success/error envelopes.
package response

import (
	"errors"
	"net/http"

	"payment-orchestrator/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// Envelope is the standard error-shaped body. Successful responses return
// the resource directly; this envelope is only used for errors.
type Envelope struct {
	Error   bool           `json:"error"`
	Message string         `json:"message"`
	Code    apperror.Kind  `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// OK sends a 200 response with data rendered directly, unwrapped.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with data rendered directly, unwrapped.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error renders err as the error envelope. An *apperror.AppError maps to
// its bound HTTP status and Kind; any other error masks its detail behind
// a generic internal-error message, since its text might leak internals.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus(), Envelope{
			Error:   true,
			Message: appErr.Message,
			Code:    appErr.Kind,
			Details: appErr.Details,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, Envelope{
		Error:   true,
		Message: "internal server error",
		Code:    apperror.KindInternal,
	})
}
