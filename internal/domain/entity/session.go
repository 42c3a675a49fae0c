package entity

import "time"

// Session is the authenticated state of the gateway: the bearer token the
// backend issued at login and the user it belongs to.
type Session struct {
	Profile   string     `json:"profile" firestore:"profile"`
	Token     string     `json:"-" firestore:"token"`
	User      User       `json:"user" firestore:"user"`
	CreatedAt time.Time  `json:"createdAt" firestore:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" firestore:"expiresAt,omitempty"`
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
