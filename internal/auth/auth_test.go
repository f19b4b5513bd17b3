package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Beacon/internal/access"
	apperrors "Beacon/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-signing-key-1234567890123456")

func newAuth(t *testing.T) *JWTAuthenticator {
	a, err := NewJWTAuthenticator(JWTConfig{Secret: secret, Issuer: "beacon", ExpiresIn: time.Hour})
	require.NoError(t, err)
	return a
}

func TestIssueAndAuthenticate(t *testing.T) {
	a := newAuth(t)
	tok, exp, err := a.IssueToken(access.Principal{ID: "op-1", Name: "Dana", Role: access.RoleStaff})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	p, err := a.Authenticate(context.Background(), Credentials{Token: tok})
	require.NoError(t, err)
	assert.Equal(t, "op-1", p.ID)
	assert.Equal(t, "Dana", p.Name)
	assert.True(t, p.IsStaff())
}

func TestAuthenticateRejects(t *testing.T) {
	a := newAuth(t)

	expired := newAuth(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.IssueToken(access.Principal{ID: "u-1"})
	require.NoError(t, err)

	other, err := NewJWTAuthenticator(JWTConfig{Secret: []byte("another-key-123456789012345678901"), Issuer: "beacon"})
	require.NoError(t, err)
	forged, _, err := other.IssueToken(access.Principal{ID: "u-1"})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":   "",
		"garbage": "not-a-token",
		"expired": old,
		"forged":  forged,
		"none":    none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), Credentials{Token: tok})
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
		})
	}
}

func TestTokenWithoutExpiryRejected(t *testing.T) {
	a := newAuth(t)
	claims := Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "beacon",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), Credentials{Token: tok})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
}

func TestUserRoleDefault(t *testing.T) {
	a := newAuth(t)
	tok, _, err := a.IssueToken(access.Principal{ID: "u-1"})
	require.NoError(t, err)
	p, err := a.Authenticate(context.Background(), Credentials{Token: tok})
	require.NoError(t, err)
	assert.Equal(t, access.RoleUser, p.Role)
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/alerts?token=abc", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "abc", FromRequest(r).Token)

	r = httptest.NewRequest(http.MethodGet, "/ws/alerts", nil)
	r.Header.Set("Authorization", "bearer xyz")
	assert.Equal(t, "xyz", FromRequest(r).Token)

	r = httptest.NewRequest(http.MethodGet, "/ws/alerts", nil)
	r.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, FromRequest(r).Token)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newAuth(t)
	tok, _, err := a.IssueToken(access.Principal{ID: "u-1", Name: "Sam"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Middleware(a), func(c *gin.Context) {
		p := CurrentPrincipal(c)
		fromCtx, ok := PrincipalFrom(c.Request.Context())
		assert.True(t, ok)
		assert.Equal(t, p, fromCtx)
		c.String(http.StatusOK, p.ID)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
