package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	jwtpkg "loyalty/scanhub/pkg/jwt"
	"loyalty/scanhub/pkg/response"
)

const ContextKeyClaims = "scanner_claims"

// JWTAuth authenticates scanner devices and operators by bearer token.
func JWTAuth(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// OperatorOnly restricts an endpoint to operator tokens. Must be used after
// JWTAuth.
func OperatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsVal, exists := c.Get(ContextKeyClaims)
		if !exists {
			response.Unauthorized(c, "missing authentication")
			c.Abort()
			return
		}
		claims, ok := claimsVal.(*jwtpkg.Claims)
		if !ok {
			response.Unauthorized(c, "invalid claims")
			c.Abort()
			return
		}
		if claims.TokenType != jwtpkg.TokenTypeOperator {
			response.Forbidden(c, "operator access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
