package auth

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthType identifies the scheme that produced an identity.
type AuthType string

// Authentication types.
const (
	AuthTypeAPIKey    AuthType = "ApiKey"
	AuthTypeAnonymous AuthType = "anonymous"
)

// API key identity constants. Every valid key maps to the same principal.
const (
	APIKeySubject = "api-key"
	APIKeyName    = "ApiKey"
)

// GinIdentityKey is the gin context key holding the *Identity.
const GinIdentityKey = "auth.identity"

// Identity represents an authenticated principal.
type Identity struct {
	// Subject is the stable identifier (name-identifier claim).
	Subject string `json:"sub"`

	// Name is the display name.
	Name string `json:"name,omitempty"`

	// AuthType is the scheme that authenticated the request.
	AuthType AuthType `json:"auth_type"`

	// AuthTime is when authentication happened.
	AuthTime time.Time `json:"auth_time,omitempty"`

	// Claims holds scheme-specific attributes exposed to policies.
	Claims map[string]interface{} `json:"claims,omitempty"`
}

// APIKeyIdentity returns the principal granted to any valid API key.
func APIKeyIdentity(at time.Time) *Identity {
	return &Identity{
		Subject:  APIKeySubject,
		Name:     APIKeyName,
		AuthType: AuthTypeAPIKey,
		AuthTime: at,
	}
}

// IsAuthenticated reports whether the identity came from a real scheme.
func (i *Identity) IsAuthenticated() bool {
	return i != nil && i.AuthType != "" && i.AuthType != AuthTypeAnonymous
}

// AsMap flattens the identity for policy evaluation.
func (i *Identity) AsMap() map[string]interface{} {
	if i == nil {
		return map[string]interface{}{}
	}
	claims := i.Claims
	if claims == nil {
		claims = map[string]interface{}{}
	}
	return map[string]interface{}{
		"sub":           i.Subject,
		"name":          i.Name,
		"auth_type":     string(i.AuthType),
		"authenticated": i.IsAuthenticated(),
		"claims":        claims,
	}
}

type identityContextKey struct{}

// ContextWithIdentity returns a copy of ctx carrying identity.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity stored in ctx, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}

// IdentityFromGin returns the identity set by the authentication middleware.
func IdentityFromGin(c *gin.Context) (*Identity, bool) {
	if v, ok := c.Get(GinIdentityKey); ok {
		if identity, ok := v.(*Identity); ok && identity != nil {
			return identity, true
		}
	}
	return IdentityFromContext(c.Request.Context())
}
