package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
	"github.com/RaMarWilson1/bookbetter/pkg/response"
)

// RequireRoles lets the request through only for the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireTenantClaim rejects pro and staff tokens minted for a different
// tenant than the :tenantId path parameter. Membership itself is checked by
// the services against staff_accounts.
func RequireTenantClaim(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if claims.TenantID != "" && claims.TenantID != c.Param(param) {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
