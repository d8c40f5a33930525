package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/pkg/apperr"
	"github.com/gallery-sim/backend/pkg/response"
)

// ContextPrincipal is the key for the resolved authz.Principal in gin context.
const ContextPrincipal = "principal"

// PrincipalSource resolves a user's system permissions, normally the claims cache.
type PrincipalSource interface {
	Get(ctx context.Context, userID uuid.UUID) (authz.Principal, error)
}

// Claims loads the caller's principal after JWT has run.
func Claims(source PrincipalSource, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == uuid.Nil {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		p, err := source.Get(c.Request.Context(), userID)
		if errors.Is(err, apperr.ErrNotFound) {
			response.Unauthorized(c, "user no longer exists")
			c.Abort()
			return
		}
		if err != nil {
			logger.Error("load claims", zap.String("user_id", userID.String()), zap.Error(err))
			response.Internal(c, "failed to load permissions")
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, p)
		c.Next()
	}
}

// Principal returns the caller's principal set by Claims.
func Principal(c *gin.Context) authz.Principal {
	v, _ := c.Get(ContextPrincipal)
	p, _ := v.(authz.Principal)
	return p
}

// RequireSystemPermission allows only callers holding at least one of perms system-wide.
func RequireSystemPermission(perms ...authz.SystemPermission) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ContextPrincipal)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if p, _ := v.(authz.Principal); !p.HasAny(perms...) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
