package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/pkg/logger"
)

// JWTValidator turns a bearer token into the acting user.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth resolves current_user() from the bearer token. Only admins may act
// without a home station; every other role is station-scoped.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or malformed bearer token")
			return
		}

		ctx := c.Request.Context()
		user, err := validator.ValidateToken(token)
		if err != nil {
			logger.Debug(ctx, "token rejected", "error", err)
			abortUnauthorized(c, "invalid token")
			return
		}
		if !user.IsAdmin() && user.StationID == "" {
			logger.Warn(ctx, "token without station", "user_id", user.UserID, "role", user.Role)
			_ = c.Error(apperror.NewForbidden("user is not assigned to a station"))
			c.Abort()
			return
		}

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("user.id", user.UserID),
			attribute.String("user.role", user.Role),
			attribute.String("user.station_id", user.StationID),
		)
		c.Request = c.Request.WithContext(appctx.WithUser(ctx, user))
		c.Set("user_id", user.UserID)

		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole rejects users outside roles before the handler runs.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if slices.Contains(roles, user.Role) {
			c.Next()
			return
		}

		logger.Warn(c.Request.Context(), "role denied", "role", user.Role, "required", roles, "path", c.FullPath())
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
