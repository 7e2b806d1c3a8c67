package models

// Role is the role assigned to a user by the identity provider.
type Role string

const (
	RoleInvestor       Role = "Investor"
	RoleBusinessPerson Role = "BusinessPerson"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	return r == RoleInvestor || r == RoleBusinessPerson
}
