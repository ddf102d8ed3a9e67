package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fuelstation/internal/core/apperror"
	"fuelstation/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		status := http.StatusInternalServerError
		var body gin.H

		if appErr, ok := apperror.AsAppError(err); ok {
			status = appErr.HTTPStatus
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error(ctx, "request failed", "code", appErr.Code, "cause", appErr.Err)
			case appErr.Code == apperror.CodeDataIntegrity:
				logger.Error(ctx, "data integrity violation", "details", appErr.Details, "cause", appErr.Err)
			case appErr.Code == apperror.CodeForbidden:
				logger.Warn(ctx, "access denied", "message", appErr.Message, "details", appErr.Details)
			}

			message := appErr.Message
			details := appErr.Details
			if appErr.Code == apperror.CodeInternal {
				message = "Internal server error"
				details = map[string]any{"request_id": c.GetString("request_id")}
			}
			body = gin.H{"code": appErr.Code, "message": message, "details": details}
		} else {
			logger.Error(ctx, "unhandled error", "error", err)
			body = gin.H{
				"code":    apperror.CodeInternal,
				"message": "Internal server error",
				"details": map[string]any{"request_id": c.GetString("request_id")},
			}
		}

		// Server faults free the key for a retry; user errors replay as they were.
		if status >= http.StatusInternalServerError {
			releaseIdempotency(c)
		} else {
			failIdempotency(c, status, body)
		}

		c.JSON(status, body)
	}
}
