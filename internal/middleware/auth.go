// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/earnings-ledger/internal/i18n"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		userID, _ := uuid.Parse(claims.UserID)
		c.Set("user_id", userID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RoleRequired lets the request through when the caller has one of roles.
// It must run after AuthRequired.
func RoleRequired(messageKey string, roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetRoleFromContext(c)
		for _, r := range roles {
			if role == string(r) {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c, i18n.T(utils.GetLangFromContext(c), messageKey))
		c.Abort()
	}
}

func SellerRequired() gin.HandlerFunc {
	return RoleRequired(i18n.KeySellerOnly, models.UserRoleAdmin, models.UserRoleSuperadmin)
}

func SuperadminRequired() gin.HandlerFunc {
	return RoleRequired(i18n.KeyAdminAccessDenied, models.UserRoleSuperadmin)
}
