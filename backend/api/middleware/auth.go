package middleware

import (
	"net/http"
	"strings"

	"chunkvault/backend/common"
	"chunkvault/backend/service"

	"github.com/gin-gonic/gin"
)

// JWTAuth resolves the authenticated caller identity from a bearer token and
// stores it on the request context. Token issuance happens in the account
// service; every protected route only needs the user id extracted here.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.RespErrorStr(c, http.StatusUnauthorized, "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.RespErrorStr(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			c.Abort()
			return
		}

		claims, err := service.ValidateToken(parts[1])
		if err != nil {
			common.RespErrorStr(c, http.StatusUnauthorized, err.Error())
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}
