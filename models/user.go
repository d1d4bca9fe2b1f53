package models

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDeploy Role = "deploy"

	// DefaultRole is assigned to every profile at registration.
	DefaultRole = RoleDeploy
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDeploy
}

// UserProfile is keyed by the identity provider's subject.
type UserProfile struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u *UserProfile) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NewUserProfile is the registration payload.
type NewUserProfile struct {
	UID   string `json:"uid"`
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}
