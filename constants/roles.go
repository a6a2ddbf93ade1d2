package constants

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleManager || role == RoleMember
}
