// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/pkg/logger"
)

// Recovery turns a handler panic into a 500 response. The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			logger.Error(ctx, "handler panic",
				"panic", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"user_id", appctx.GetUserID(ctx),
				"stack", string(debug.Stack()),
			)

			_ = c.Error(
				apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", appctx.GetRequestID(ctx)),
			)
			c.Abort()
		}()
		c.Next()
	}
}
