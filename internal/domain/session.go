package domain

import "time"

// redactedPrefix is how much of a token may appear in logs
const redactedPrefix = 8

// Credentials are the account used against the sensor cloud
type Credentials struct {
	Email    string
	Password string
}

// Session holds a bearer token with a server-controlled expiry.
// The zero value is an invalid session.
type Session struct {
	Token      string
	AcquiredAt time.Time
}

// NewSession wraps a freshly issued token
func NewSession(token string, acquiredAt time.Time) Session {
	return Session{Token: token, AcquiredAt: acquiredAt}
}

// Valid reports whether the session carries a token
func (s Session) Valid() bool {
	return s.Token != ""
}

// Redacted returns a bounded prefix of the token for diagnostics
func (s Session) Redacted() string {
	if s.Token == "" {
		return "<none>"
	}
	if len(s.Token) <= redactedPrefix {
		return "…"
	}
	return s.Token[:redactedPrefix] + "…"
}
