package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/pkg/auth/jwt"
	"github.com/smaxiso/portfolio-rag/pkg/authz"
	"github.com/smaxiso/portfolio-rag/pkg/errors"
	"github.com/smaxiso/portfolio-rag/pkg/response"
)

// ContextKeyAdminEmail is the gin context key holding the verified admin email.
const ContextKeyAdminEmail = "admin_email"

// TokenVerifier verifies a bearer token. *jwt.JWT satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*jwt.Claims, error)
}

// AdminAuth authenticates the bearer token and authorizes its email for
// action on resource. Missing or invalid tokens get 401, unknown admins 403.
func AdminAuth(verifier TokenVerifier, authorizer authz.Authorizer, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Fail(c, errors.ErrUnauthorized)
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Warnw("admin authentication failed",
				"path", c.Request.URL.Path,
				"remote_addr", c.Request.RemoteAddr,
				"error", err.Error(),
			)
			response.Fail(c, errors.FromError(err))
			return
		}

		allowed, err := authorizer.Authorize(c.Request.Context(), claims.Email, resource, action)
		if err != nil {
			response.Fail(c, errors.ErrInternal.WithCause(err))
			return
		}
		if !allowed {
			logger.Warnw("admin authorization denied",
				"email", claims.Email,
				"resource", resource,
				"action", action,
				"path", c.Request.URL.Path,
			)
			response.Fail(c, errors.ErrAdminForbidden)
			return
		}

		c.Set(ContextKeyAdminEmail, claims.Email)
		c.Next()
	}
}

// AdminEmail returns the email stored by AdminAuth.
func AdminEmail(c *gin.Context) string {
	return c.GetString(ContextKeyAdminEmail)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
