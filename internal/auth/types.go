package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSecret     = errors.New("jwt secret is not configured")
)

// Roles understood by HasPermission.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Resources and actions guarded by the API.
const (
	ResourceProcess = "process"
	ActionRead      = "read"
	ActionKill      = "kill"
)

// Result is the outcome of authenticating a request.
type Result struct {
	Success bool     `json:"success"`
	Subject string   `json:"subject,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

// Token represents a JWT token
type Token struct {
	Type      string    `json:"type"`  // "Bearer"
	Value     string    `json:"value"` // JWT token string
	ExpiresAt time.Time `json:"expires_at"`
}

// Permission represents a permission in the system
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

var rolePermissions = map[string][]Permission{
	RoleAdmin: {
		{Resource: "*", Action: "*"},
	},
	RoleOperator: {
		{Resource: ResourceProcess, Action: ActionRead},
		{Resource: ResourceProcess, Action: ActionKill},
	},
	RoleViewer: {
		{Resource: ResourceProcess, Action: ActionRead},
	},
}

// HasPermission checks if any of roles grants action on resource.
func HasPermission(roles []string, resource, action string) bool {
	for _, role := range roles {
		for _, perm := range rolePermissions[role] {
			if (perm.Resource == "*" || perm.Resource == resource) &&
				(perm.Action == "*" || perm.Action == action) {
				return true
			}
		}
	}
	return false
}
