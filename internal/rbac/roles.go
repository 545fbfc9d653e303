package rbac

// Role names carried in access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func Valid(role string) bool { return role == RoleUser || role == RoleAdmin }
