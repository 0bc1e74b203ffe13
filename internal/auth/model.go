package auth

import "time"

const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// APIKey is a stored credential. Only the bcrypt hash of the key is kept.
type APIKey struct {
	ID        string
	OrgID     string
	Email     string
	Role      string
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Principal is who a bearer token speaks for.
type Principal struct {
	OrgID string
	Email string
	Role  string
}
