package authz

import (
	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/auth"
)

// Middleware returns a gin middleware that requires the capability
// implied by the request method. It must run after auth.Middleware.
// Denials are attached with c.Error for the error normalizer, which
// reports them as 401 without the reason.
func Middleware(a *Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := auth.IdentityFromGin(c)
		capability := CapabilityForMethod(c.Request.Method)

		if _, err := a.Authorize(c.Request.Context(), identity, capability); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Next()
	}
}
