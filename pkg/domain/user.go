package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoleOrg tags users that participate in organization membership management.
// Role comparison is case-insensitive throughout.
const RoleOrg = "org"

// User represents a directory entry. Users are created and destroyed by an
// external identity system; this service only reads them.
type User struct {
	ID                  uuid.UUID
	Email               string
	Username            *string
	Name                *string
	Role                string
	Active              bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// IsOrgUser returns true if the user carries the organization role tag.
func (u *User) IsOrgUser() bool {
	return strings.EqualFold(u.Role, RoleOrg)
}

// IsLocked returns true if the account is currently locked.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// UserCredential stores operator password credentials separately from the
// directory entry.
type UserCredential struct {
	UserID            uuid.UUID
	PasswordHash      string
	TOTPSecret        *string
	PasswordUpdatedAt time.Time
}
