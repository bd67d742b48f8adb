package entity

import (
	"time"
)

// User is the aggregate root for the user domain.
// HashedPassword is an opaque credential blob supplied by the caller on
// creation and replaced through the password-change flow.
//
// VerifyEmailToken and VerifyEmailTokenExpiration are either both nil (no
// verification outstanding) or both set. A verified user carries no token.
type User struct {
	ID                         string
	Email                      string
	EmailVerified              bool
	Name                       string
	Surname                    string
	HashedPassword             string
	VerifyEmailToken           *string
	VerifyEmailTokenExpiration *time.Time
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// HasVerificationToken reports whether a verification request is outstanding.
func (u *User) HasVerificationToken() bool {
	return u.VerifyEmailToken != nil && u.VerifyEmailTokenExpiration != nil
}

// SetVerificationToken stores a fresh token pair, replacing any previous one.
func (u *User) SetVerificationToken(token string, expiresAt time.Time) {
	u.VerifyEmailToken = &token
	u.VerifyEmailTokenExpiration = &expiresAt
}

// ClearVerificationToken drops both token fields together.
func (u *User) ClearVerificationToken() {
	u.VerifyEmailToken = nil
	u.VerifyEmailTokenExpiration = nil
}
