package domain

import "time"

// RoleAdmin is granted to the first user who signs in and unlocks the admin
// area.
const RoleAdmin = "ADMIN"

type Role struct {
	ID               string
	Name             string
	NormalizedName   string
	ConcurrencyStamp string
	CreatedAt        time.Time
}
