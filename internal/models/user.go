package models

import "strings"

// Role is the account role reported by the identity service.
type Role string

const (
	RolePartner        Role = "PARTNER"
	RoleAdmin          Role = "ADMIN"
	RoleAdminAssistant Role = "ADMIN_ASSISTANT"
	RoleSuperAdmin     Role = "SUPER_ADMIN"
	RoleUser           Role = "USER"
	RoleDriver         Role = "DRIVER"
)

// ParseRole normalizes the casing and separators used by upstream producers.
func ParseRole(raw string) Role {
	r := strings.ToUpper(strings.TrimSpace(raw))
	r = strings.NewReplacer("-", "_", " ", "_").Replace(r)
	if r == "ASSISTANT_ADMIN" {
		return RoleAdminAssistant
	}
	return Role(r)
}

// DirectoryEntry mirrors a user record held by the identity service.
type DirectoryEntry struct {
	ID        string `json:"_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}
