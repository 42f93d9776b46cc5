package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/pkg/response"
)

// ContextAccountKey is the gin context key storing the authenticated account.
const ContextAccountKey = "currentAccount"

// AccountResolver loads the account behind an access token.
type AccountResolver interface {
	AccountFromAccessToken(ctx context.Context, token string) (*models.Account, error)
}

// JWT attaches the account behind a valid bearer token. Requests without a
// usable token continue anonymously; Authorize decides whether that is enough.
func JWT(resolver AccountResolver, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		account, err := resolver.AccountFromAccessToken(c.Request.Context(), token)
		if err != nil {
			logger.Error("failed to resolve access token", zap.Error(err))
			response.Error(c, err)
			c.Abort()
			return
		}
		if account != nil {
			c.Set(ContextAccountKey, account)
		}
		c.Next()
	}
}

// CurrentAccount returns the account attached by JWT.
func CurrentAccount(c *gin.Context) (*models.Account, bool) {
	value, exists := c.Get(ContextAccountKey)
	if !exists {
		return nil, false
	}
	account, ok := value.(*models.Account)
	return account, ok && account != nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
