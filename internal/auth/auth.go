// Package auth turns request credentials into an access.Principal.
package auth

import (
	"context"
	"net/http"
	"strings"

	"Beacon/internal/access"
)

// Credentials 连接或请求携带的凭证
type Credentials struct {
	Token string
}

// Authenticator 认证接口，失败时返回 unauthorized
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (access.Principal, error)
}

// AuthenticatorFunc 函数适配
type AuthenticatorFunc func(ctx context.Context, creds Credentials) (access.Principal, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, creds Credentials) (access.Principal, error) {
	return f(ctx, creds)
}

// FromRequest 优先取 ?token=，浏览器 websocket 无法设置请求头
func FromRequest(r *http.Request) Credentials {
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return Credentials{Token: tok}
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return Credentials{Token: strings.TrimSpace(parts[1])}
	}
	return Credentials{}
}

type principalKey struct{}

// WithPrincipal 存入 context
func WithPrincipal(ctx context.Context, p access.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom 从 context 取出，不存在时返回匿名
func PrincipalFrom(ctx context.Context) (access.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(access.Principal)
	return p, ok
}
