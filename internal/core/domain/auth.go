package domain

// Role is the access level of an authenticated caller
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Principal is the authenticated caller attached to a request.
// Identities are issued elsewhere; this service only verifies them.
type Principal struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
	Method  string `json:"method"` // "jwt" or "api_key"
}

// IsAdmin checks if the principal may perform administrative operations
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
