package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ResultKey is the gin context key holding the *Result of a request.
const ResultKey = "auth_result"

// Middleware guards gin routes. A nil service disables authentication.
type Middleware struct {
	service *Service
}

func NewMiddleware(s *Service) *Middleware { return &Middleware{service: s} }

// Enabled reports whether requests are checked.
func (m *Middleware) Enabled() bool { return m != nil && m.service != nil }

// GinAuth returns a Gin middleware function for bearer authentication.
func (m *Middleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_required",
				"message": "Authentication required",
			})
			return
		}
		res, err := m.service.Verify(token)
		if err != nil || !res.Success {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_failed",
				"message": "Invalid credentials",
			})
			return
		}

		c.Set(ResultKey, res)
		c.Next()
	}
}

// GinRequirePermission returns a Gin middleware that requires action on resource.
func (m *Middleware) GinRequirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		v, exists := c.Get(ResultKey)
		res, ok := v.(*Result)
		if !exists || !ok || !res.Success {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_required",
				"message": "Authentication required",
			})
			return
		}

		if !HasPermission(res.Roles, resource, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "permission_denied",
				"message": "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}

func bearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	t := strings.TrimSpace(parts[1])
	return t, t != ""
}
