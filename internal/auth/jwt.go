package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Beacon/internal/access"
	apperrors "Beacon/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims 令牌载荷
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	IsStaff  bool   `json:"is_staff,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig 签名配置
type JWTConfig struct {
	Secret    []byte
	Issuer    string
	ExpiresIn time.Duration
}

// JWTAuthenticator HS256 令牌认证
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
	now    func() time.Time
}

var _ Authenticator = (*JWTAuthenticator)(nil)

func NewJWTAuthenticator(cfg JWTConfig) (*JWTAuthenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.ExpiresIn <= 0 {
		cfg.ExpiresIn = 24 * time.Hour
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &JWTAuthenticator{
		config: cfg,
		parser: jwt.NewParser(opts...),
		now:    time.Now,
	}, nil
}

// Authenticate 校验签名与有效期并还原身份
func (a *JWTAuthenticator) Authenticate(_ context.Context, creds Credentials) (access.Principal, error) {
	if creds.Token == "" {
		return access.Principal{}, apperrors.Unauthorized("missing token")
	}

	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(creds.Token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return access.Principal{}, apperrors.Unauthorized("token expired")
		}
		return access.Principal{}, apperrors.Unauthorized("invalid token")
	}
	if !token.Valid {
		return access.Principal{}, apperrors.Unauthorized("invalid token")
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return access.Principal{}, apperrors.Unauthorized("token has no subject")
	}
	role := access.RoleUser
	if claims.IsStaff || access.Role(claims.Role) == access.RoleStaff {
		role = access.RoleStaff
	}
	return access.Principal{ID: id, Name: claims.Username, Role: role}, nil
}

// IssueToken 签发令牌
func (a *JWTAuthenticator) IssueToken(p access.Principal) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.config.ExpiresIn)
	claims := Claims{
		UserID:   p.ID,
		Username: p.Name,
		Role:     string(p.Role),
		IsStaff:  p.IsStaff(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.config.Issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}
