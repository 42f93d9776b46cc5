package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/pkg/response"
)

// Authorize requires an authenticated account. When roles are given the
// account must hold one of them.
func Authorize(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok || !hasRole(account, roles) {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}

// AuthorizeSelfOr admits the account named by the :id route parameter or any
// account holding one of roles.
func AuthorizeSelfOr(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok {
			response.Unauthorized(c)
			return
		}
		if id := c.Param("id"); id != "" && id == account.ID {
			c.Next()
			return
		}
		if len(roles) == 0 || !hasRole(account, roles) {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}

func hasRole(account *models.Account, roles []models.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if account.Role == role {
			return true
		}
	}
	return false
}
