package rbac

// Role names. Keep these stable; they are part of the token contract.
const (
	// RoleSignaling belongs to the protocol stacks that drive calls.
	RoleSignaling = "signaling"
	// RoleObserver may read state and subscribe to the event stream.
	RoleObserver = "observer"
	RoleAdmin    = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// Known reports whether role is one the API issues tokens for.
func Known(role string) bool {
	switch role {
	case RoleSignaling, RoleObserver, RoleAdmin:
		return true
	}
	return false
}
