package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(m *Middleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", m.GinAuth())
	g.GET("/read", m.GinRequirePermission(ResourceProcess, ActionRead), func(c *gin.Context) { c.Status(http.StatusOK) })
	g.POST("/kill", m.GinRequirePermission(ResourceProcess, ActionKill), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestMiddlewareDisabled(t *testing.T) {
	r := newRouter(NewMiddleware(nil))
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/kill", ""))
}

func TestMiddlewareEnforces(t *testing.T) {
	s, err := NewService("secret", time.Minute)
	require.NoError(t, err)
	r := newRouter(NewMiddleware(s))

	viewer, _ := s.Issue("v", []string{RoleViewer})
	op, _ := s.Issue("o", []string{RoleOperator})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/read", ""))
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/read", "bogus"))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/read", viewer.Value))
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/kill", viewer.Value))
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/kill", op.Value))
}

func TestBearer(t *testing.T) {
	tok, ok := bearer("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
	_, ok = bearer("Basic abc")
	assert.False(t, ok)
	_, ok = bearer("Bearer ")
	assert.False(t, ok)
}
