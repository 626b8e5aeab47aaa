package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
	"github.com/noah-isme/tutor-admin/pkg/logger"
	"github.com/noah-isme/tutor-admin/pkg/response"
)

// ContextUserKey is the gin context key storing access token claims.
const ContextUserKey = "currentUser"

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.Claims, error)
}

var errNoCredentials = appErrors.Clone(appErrors.ErrUnauthorized, "Authentication credentials were not provided.")

// JWT rejects requests without a valid bearer access token. Failures carry a
// WWW-Authenticate challenge and the usual error body.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var claims *models.Claims
			if claims, err = validator.ValidateToken(token); err == nil {
				c.Set(ContextUserKey, claims)
				c.Set(logger.UserKey, claims.Username)
				c.Next()
				return
			}
		}

		c.Header("WWW-Authenticate", `Bearer realm="api"`)
		response.Error(c, err)
		c.Abort()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "Authorization header must be 'Bearer <token>'.")
	}
	return token, nil
}
