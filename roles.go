package auth

// IsValid checks if the role is one of the marketplace roles
func (r Role) IsValid() bool {
	switch r {
	case RoleDeveloper, RoleCompany:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns the roles in probe order
func GetAllRoles() []Role {
	return []Role{
		RoleDeveloper,
		RoleCompany,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// roleFromMetadata extracts a role hint from identity metadata.
func roleFromMetadata(metadata map[string]any) (Role, bool) {
	if metadata == nil {
		return "", false
	}

	switch raw := metadata["role"].(type) {
	case string:
		return ParseRole(raw)
	case Role:
		return raw, raw.IsValid()
	default:
		return "", false
	}
}
