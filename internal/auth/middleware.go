package auth

import (
	"Beacon/internal/access"
	"Beacon/pkg/response"

	"github.com/gin-gonic/gin"
)

const principalCtxKey = "principal"

// Middleware REST 认证中间件，写入 gin.Context 和 request context
func Middleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.Authenticate(c.Request.Context(), FromRequest(c.Request))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Set(principalCtxKey, p)
		c.Set("user_id", p.ID)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// CurrentPrincipal 取当前请求的调用方
func CurrentPrincipal(c *gin.Context) access.Principal {
	if v, ok := c.Get(principalCtxKey); ok {
		if p, ok := v.(access.Principal); ok {
			return p
		}
	}
	return access.Principal{}
}
