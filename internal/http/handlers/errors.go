package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/StrixzIV/adv-compro-finals/internal/apperr"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindDerivationFailed:
		return http.StatusUnprocessableEntity
	case apperr.KindForbidden:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindStorageWriteFailed, apperr.KindStorageReadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the JSON error body. Server side failures are
// also attached to the gin context so the request log records them.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	message := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", kind, "path", c.Request.URL.Path, "error", err)
		_ = c.Error(err)
	}

	abortJSON(c, status, string(kind), message, apperr.IsRetryable(err))
}

func abortJSON(c *gin.Context, status int, kind, message string, retryable bool) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":     kind,
		"message":   message,
		"retryable": retryable,
	})
}

func badRequest(c *gin.Context, message string) {
	abortJSON(c, http.StatusBadRequest, string(apperr.KindInvalidInput), message, false)
}
