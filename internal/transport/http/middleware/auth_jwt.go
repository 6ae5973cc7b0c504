package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"catalog-admin/internal/authgate"
	"catalog-admin/internal/domain"
	resp "catalog-admin/internal/transport/http/response"
)

const (
	KeyPrincipal = "principal"
	KeyToken     = "token"
)

// Verifier resolves a bearer token to the current principal; authgate.Service implements it.
type Verifier interface {
	Verify(ctx context.Context, token string) (authgate.Principal, error)
}

func BearerToken(c *gin.Context) string {
	ah := c.GetHeader("Authorization")
	if !strings.HasPrefix(ah, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
}

func AuthJWT(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		p, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			abort(c, resp.CodeUnauthorized, err.Error())
			return
		}
		c.Set(KeyPrincipal, p)
		c.Set(KeyToken, token)
		c.Next()
	}
}

// RequireRole must run after AuthJWT.
func RequireRole(required domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abort(c, resp.CodeUnauthorized, "unauthorized")
			return
		}
		if !domain.Authorize(p.Role, required) {
			abort(c, resp.CodeForbidden, "requires role "+string(required))
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (authgate.Principal, bool) {
	v, ok := c.Get(KeyPrincipal)
	if !ok {
		return authgate.Principal{}, false
	}
	p, ok := v.(authgate.Principal)
	return p, ok
}

// Actor is the audit identity of the authenticated caller.
func Actor(c *gin.Context) domain.Actor {
	p, _ := PrincipalFrom(c)
	return p.Actor(c.ClientIP())
}
