package jwt

import (
	"strings"

	"koo/pkg/back"
	"koo/pkg/util/myjwt"
	"koo/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// 上下文中的身份字段
const (
	CtxSubject  = "subject"
	CtxUsername = "username"
)

// Auth 校验 Bearer 令牌，通过后把身份写入上下文
func Auth(signer *myjwt.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			back.Error(c, xerr.Unauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := signer.ParseToken(tokenString)
		if err != nil {
			back.Error(c, xerr.Unauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(CtxSubject, claims.Subject)
		c.Set(CtxUsername, claims.Username)
		c.Next()
	}
}
