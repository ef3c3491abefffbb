package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"chat-engine/models"
	"chat-engine/services"
)

// TokenAuthMiddleware resolves the caller from a bearer token (or the
// accessToken query parameter), loads the account row and attaches it to the
// context. When roles are given, the caller's role must be among them.
func TokenAuthMiddleware(secret string, db *gorm.DB, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("accessToken")
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "access token is missing")
			return
		}

		claims, err := services.ParseToken(token, secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abort(c, http.StatusForbidden, "token expired")
				return
			}
			abort(c, http.StatusForbidden, "invalid token")
			return
		}

		var user models.User
		if err := db.First(&user, "id = ?", claims.Subject).Error; err != nil {
			abort(c, http.StatusUnauthorized, "invalid user token")
			return
		}

		if len(roles) > 0 && !lo.Contains(roles, user.Role) {
			abort(c, http.StatusForbidden, "access forbidden")
			return
		}

		c.Set("user", &user)
		c.Next()
	}
}

// CurrentUser pulls the authenticated user out of the gin context.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": false, "message": message})
}
