package domain

// Role names used across transitions' allowed-role sets. Roles are issued by
// the external identity provider; the engine only compares them.
const (
	RoleAdmin     = "ADMIN"
	RoleAgent     = "AGENT"
	RoleTeamLead  = "TEAM_LEAD"
	RoleRequester = "REQUESTER"
	RoleSystem    = "SYSTEM"
)

// User is the acting principal for a transition execution.
type User struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// SystemUser is the principal automatic transitions execute under.
func SystemUser() *User {
	return &User{ID: "system", Role: RoleSystem, DisplayName: "System"}
}

// Projection returns a read-only map view for templates and scripts.
func (u *User) Projection() map[string]any {
	if u == nil {
		return map[string]any{}
	}
	return map[string]any{
		"id":           u.ID,
		"role":         u.Role,
		"email":        u.Email,
		"display_name": u.DisplayName,
	}
}
