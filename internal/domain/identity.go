package domain

// Identity is the authenticated caller resolved from a bearer credential.
type Identity struct {
	UserID   string
	Role     UserRole
	Status   UserStatus
	FullName string
}

// IsAdmin is true only for active administrators; suspended or pending
// admins cannot perform gating actions.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin && i.Status == UserActive
}

func (i *Identity) Is(userID string) bool {
	return i != nil && userID != "" && i.UserID == userID
}

func (i *Identity) HasRole(roles ...UserRole) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
