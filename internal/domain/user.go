package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an account holder. PasswordHash and ActiveTokens never
// leave the service layer; the HTTP layer serializes users through its own
// response types.
type User struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	Age               int
	Role              Role
	AvatarKey         string
	PasswordChangedAt *time.Time
	ActiveTokens      []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PasswordChangedAfter reports whether the password was changed after the
// given token issue time. Comparison is at second granularity because token
// issue timestamps carry no sub-second precision.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}
