package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"creditbot/config"
	"creditbot/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRateLimiterWindow(t *testing.T) {
	l := NewInMemoryRateLimiter(2, time.Minute)
	ok, _ := l.Allow("a")
	require.True(t, ok)
	ok, _ = l.Allow("a")
	require.True(t, ok)
	ok, wait := l.Allow("a")
	require.False(t, ok)
	require.Greater(t, wait, time.Duration(0))
	ok, _ = l.Allow("b")
	require.True(t, ok)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	jwtCfg := &config.JWTConfig{AccessSecret: "k", AccessExpiry: time.Hour, Issuer: "creditbot"}
	r := gin.New()
	r.Use(RequestLogger(logrus.New()))
	r.GET("/admin", AuthRequired(jwtCfg), AdminRequired(config.AdminConfig{IDs: []int64{5}}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin_id": GetAdminID(c)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))

	tok, err := auth.GenerateAccessToken(jwtCfg, 5)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	revoked, err := auth.GenerateAccessToken(jwtCfg, 6)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+revoked)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}
