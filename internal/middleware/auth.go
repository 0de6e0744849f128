// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionCookie 是保存本地会话 token 的 cookie 名。
const SessionCookie = "cora_session"

const principalKey = "principal"

// IdentityMiddleware 为每个请求解析调用者身份并存入 Gin 上下文。
// 联合身份请求头优先，其次是 Bearer token 或会话 cookie，否则为匿名。它从不中止请求。
func IdentityMiddleware(userService service.UserService, federatedHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var federated string
		if federatedHeader != "" {
			federated = c.GetHeader(federatedHeader)
		}
		p := userService.ResolvePrincipal(c.Request.Context(), federated, SessionToken(c))
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireAuth 拒绝匿名请求。必须在 IdentityMiddleware 之后使用。
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p := PrincipalFrom(c); !p.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "Authentication required", "data": nil})
			return
		}
		c.Next()
	}
}

// PrincipalFrom 返回 IdentityMiddleware 解析出的身份；未解析时视为匿名。
func PrincipalFrom(c *gin.Context) model.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(model.Principal); ok {
			return p
		}
	}
	return model.Principal{Identity: model.AnonymousIdentity, AuthMethod: model.AuthAnonymous}
}

// SessionToken 从 "Authorization: Bearer" 请求头或会话 cookie 中提取本地 token。
func SessionToken(c *gin.Context) string {
	const bearerPrefix = "Bearer "
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if v, err := c.Cookie(SessionCookie); err == nil {
		return v
	}
	return ""
}
