package models

import "github.com/golang-jwt/jwt/v5"

// Caller roles
const (
	RoleAgent         = "agent"
	RoleServiceCenter = "service_center"
	RoleAdmin         = "admin"
)

// Application permissions
const (
	PermissionTransferWrite    = "transfer:write"
	PermissionTransferValidate = "transfer:validate"
	PermissionTransferNoPin    = "transfer:pinless"
	PermissionSettingsWrite    = "settings:write"
)

type UserClaims struct {
	jwt.RegisteredClaims
	UserID      uint     `json:"user_id"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *UserClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Actor is the identity recorded as the creator of audit rows.
func (c *UserClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionTransferWrite,
			PermissionTransferValidate,
			PermissionTransferNoPin,
			PermissionSettingsWrite,
		}
	case RoleServiceCenter:
		return []string{
			PermissionTransferWrite,
			PermissionTransferValidate,
			PermissionTransferNoPin,
		}
	case RoleAgent:
		return []string{
			PermissionTransferWrite,
			PermissionTransferValidate,
		}
	default:
		return []string{}
	}
}
