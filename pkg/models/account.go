package models

import "time"

// AccountRole distinguishes the two account kinds. Login names share a single
// namespace across both roles: creating an owner named X fails if a
// contributor X exists, and vice versa.
type AccountRole string

const (
	RoleOwner       AccountRole = "owner"
	RoleContributor AccountRole = "contributor"
)

// Account is a login principal, either an owner (administers projects and
// accounts) or a contributor (joins projects and works tickets).
type Account struct {
	LoginName string      `json:"login_name" db:"login_name"`
	Password  string      `json:"-" db:"password_digest"` // bcrypt digest, never serialized
	FirstName string      `json:"first_name" db:"first_name"`
	LastName  string      `json:"last_name" db:"last_name"`
	Role      AccountRole `json:"role" db:"role"`
	Phone     string      `json:"phone,omitempty" db:"phone"` // contributors only
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// AccountUpsertRequest is the payload for creating or updating an account.
// Password is a pointer so "absent" (keep current digest on update) can be
// told apart from "empty".
type AccountUpsertRequest struct {
	LoginName string  `json:"login_name"`
	Password  *string `json:"password,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     string  `json:"phone,omitempty"`
}
