package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"loyalty/scanhub/internal/handler/middleware"
	jwtpkg "loyalty/scanhub/pkg/jwt"
)

var ErrNoClaims = errors.New("claims not found in context")

func getBusinessIDFromContext(c *gin.Context) (int64, error) {
	claimsVal, exists := c.Get(middleware.ContextKeyClaims)
	if !exists {
		return 0, ErrNoClaims
	}
	claims, ok := claimsVal.(*jwtpkg.Claims)
	if !ok {
		return 0, ErrNoClaims
	}
	return claims.BusinessID, nil
}
