package models

import "time"

// Project is a collaborative workspace owned by exactly one owner account.
// The entry key doubles as the join code contributors use to enroll.
type Project struct {
	EntryKey  string    `json:"entry_key" db:"entry_key"`
	Name      string    `json:"name" db:"name"`
	Owner     string    `json:"owner" db:"owner_login"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Membership enrolls a contributor in a project. Pairs are unique; the row is
// removed when either side is deleted.
type Membership struct {
	LoginName string    `json:"login_name" db:"login_name"`
	EntryKey  string    `json:"entry_key" db:"entry_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProjectUpsertRequest is the payload for creating or updating a project.
type ProjectUpsertRequest struct {
	EntryKey string `json:"entry_key"`
	Name     string `json:"name"`
	Owner    string `json:"owner"`
}

// JoinRequest is the payload a contributor sends to enroll in a project.
type JoinRequest struct {
	EntryKey string `json:"entry_key"`
}
