package domain

import "time"

// IdentityToken is the opaque handle of an authenticated session.
type IdentityToken string

// Session binds a user to a role and capability set until Expiration.
// Sessions are values; a role change requires a new session.
type Session struct {
	UserID       string        `json:"user_id"`
	Token        IdentityToken `json:"token"`
	Role         Role          `json:"role"`
	Capabilities CapabilitySet `json:"capabilities"`
	IssuedAt     time.Time     `json:"issued_at"`
	Expiration   time.Time     `json:"expiration"`
}

// IsValid reports whether the session is still usable at now.
func (s Session) IsValid(now time.Time) bool {
	return s.Token != "" && now.Before(s.Expiration)
}

// IsValid is the free-function form used by callers holding a pointer that may be nil.
func IsValid(s *Session, now time.Time) bool {
	return s != nil && s.IsValid(now)
}
