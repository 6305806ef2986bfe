package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
	"github.com/noah-isme/fourset-checker/pkg/response"
)

// RequireRoles only lets operators holding one of roles through.
func RequireRoles(roles ...models.OperatorRole) gin.HandlerFunc {
	allowed := make(map[models.OperatorRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
