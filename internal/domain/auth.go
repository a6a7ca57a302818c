package domain

import "time"

// Token describes an issued bearer token wrapping a session handle.
type Token struct {
	Value     string
	Session   IdentityToken
	UserID    string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
