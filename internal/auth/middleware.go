package auth

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/problem"
)

// HeaderWWWAuthenticate is the challenge header sent with every 401.
const HeaderWWWAuthenticate = "WWW-Authenticate"

// Middleware returns a gin middleware that authenticates every request
// with a. Failures abort the chain with a 401 problem response whose
// detail names the failure kind. On success the identity is stored in
// both the request context and the gin context.
func Middleware(a *Authenticator) gin.HandlerFunc {
	challenge := fmt.Sprintf(`ApiKey header="%s"`, a.HeaderName())

	return func(c *gin.Context) {
		identity, err := a.Authenticate(c.Request)
		if err != nil {
			detail := MessageInvalidCredential
			if kind := FailureKindOf(err); kind != "" {
				detail = kind.Message()
			}

			c.Header(HeaderWWWAuthenticate, challenge)
			problem.Write(c, problem.New(c.Request, http.StatusUnauthorized, problem.TitleUnauthorized, detail))
			return
		}

		c.Request = c.Request.WithContext(ContextWithIdentity(c.Request.Context(), identity))
		c.Set(GinIdentityKey, identity)
		c.Next()
	}
}
