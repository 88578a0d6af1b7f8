package auth

import (
	"errors"
	"regexp"
)

// clientIDPattern defines the valid format for client IDs:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var clientIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidClientID checks if a client ID meets format requirements.
func IsValidClientID(id string) bool {
	return clientIDPattern.MatchString(id)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read armband state and session history.
	RoleViewer Role = "viewer"

	// RoleOperator can additionally lock, unlock, vibrate and toggle streaming.
	RoleOperator Role = "operator"

	// RoleAdmin can additionally read system metrics.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid client roles.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Client is a registered API client.
type Client struct {
	ID      string `json:"id"`
	KeyHash string `json:"-"` // never serialised
	Role    Role   `json:"role"`
}

// Sentinel errors.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidClient      = errors.New("auth: invalid client")
	ErrDuplicateClient    = errors.New("auth: duplicate client")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrForbidden          = errors.New("auth: insufficient permissions")
)
