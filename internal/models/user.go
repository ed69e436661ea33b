package models

// UserRole represents the identity roles issued by the auth provider.
type UserRole string

const (
	RoleClient UserRole = "client"
	RolePro    UserRole = "pro"
	RoleStaff  UserRole = "staff"
)

// Valid reports whether the role is one the booking core recognises.
func (r UserRole) Valid() bool {
	switch r {
	case RoleClient, RolePro, RoleStaff:
		return true
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
