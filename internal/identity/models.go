package identity

import (
	"regexp"
	"time"

	id "github.com/bamarler/flaZK/pkg/domain"
)

// VerificationCode is a pending phone challenge. One active code per phone;
// issuing a new one replaces any outstanding challenge.
type VerificationCode struct {
	Phone     string
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Attempts  int
}

// IsExpired reports whether the challenge has aged out.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// User is a phone-verified identity. IDs are stable across verifications so
// documents uploaded in one session survive into the next.
type User struct {
	ID        id.UserID
	Phone     string
	CreatedAt time.Time
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// ValidPhone reports whether the string is an acceptable E.164-ish number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
