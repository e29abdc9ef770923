package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bassista/solution_explorer/internal/domain"
)

const identityKey = "explorer.identity"

// IdentityResolver turns a bearer token into an identity. Verifying the
// token is up to the resolver; returning an error rejects the request.
type IdentityResolver func(ctx context.Context, token string) (domain.Identity, error)

// OpaqueTokenIdentity accepts any token and carries it along unverified.
// Requests are attributed to the token holder without any claims.
func OpaqueTokenIdentity(_ context.Context, token string) (domain.Identity, error) {
	return domain.Identity{Subject: "bearer", Token: token}, nil
}

// Identity extracts the caller from the Authorization header. Requests
// without the header proceed anonymously; malformed headers and tokens the
// resolver rejects get a 401.
func Identity(resolve IdentityResolver) gin.HandlerFunc {
	if resolve == nil {
		resolve = OpaqueTokenIdentity
	}
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Set(identityKey, domain.Identity{})
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authorization header must be 'Bearer <token>'",
				"code":  "unauthenticated",
			})
			return
		}

		id, err := resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
				"code":  "unauthenticated",
			})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the identity set by Identity, or the anonymous identity.
func IdentityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(domain.Identity); ok {
			return id
		}
	}
	return domain.Identity{}
}
