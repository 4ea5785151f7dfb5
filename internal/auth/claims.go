package auth

import "github.com/golang-jwt/jwt/v5"

// Claims carry the caller identity for the signaling and admin API.
// Role is checked by internal/rbac; the token only proves who issued it.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id"`
	Role   string `json:"role"`

	// Accounts limits which provider accounts the caller may drive. Empty
	// means every account.
	Accounts []string `json:"accounts,omitempty"`
}

func (c Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role, Accounts: c.Accounts}
}
