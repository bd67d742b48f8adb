package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/orientati/user-service/internal/domain/entity"
	repo "github.com/orientati/user-service/internal/domain/repository"
)

// DefaultVerificationTTL is the validity window of a verification token.
const DefaultVerificationTTL = 30 * time.Minute

// TokenManager issues and redeems single-use email verification tokens.
// Each user holds at most one outstanding token; issuing again overwrites
// the previous one.
type TokenManager struct {
	Repo   repo.UserRepository
	Atomic repo.Atomic
	Clock  Clock
	TTL    time.Duration
}

func NewTokenManager(r repo.UserRepository, atomic repo.Atomic, clock Clock, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return &TokenManager{Repo: r, Atomic: atomic, Clock: clock, TTL: ttl}
}

// Issue stores a fresh token pair on the user and returns the token for the
// caller to embed in a delivery link. The lookup and the write share one
// transaction so a concurrent issue cannot interleave. Already-verified
// users keep their state and get an empty token back.
func (m *TokenManager) Issue(ctx context.Context, userID string) (*entity.User, string, error) {
	var u *entity.User
	var token string
	err := m.Atomic.Within(ctx, func(ctx context.Context) error {
		found, err := m.Repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if found.EmailVerified {
			u = found
			return nil
		}
		tok, err := generateToken()
		if err != nil {
			return err
		}
		now := m.Clock.Now()
		found.SetVerificationToken(tok, now.Add(m.TTL))
		found.UpdatedAt = now
		if err := m.Repo.Update(ctx, found); err != nil {
			return err
		}
		u, token = found, tok
		return nil
	})
	if err != nil {
		return nil, "", wrapStorage("issue verification token", err)
	}
	return u, token, nil
}

// Redeem marks the token's owner verified and clears the token pair.
// Unknown tokens return ErrNotFound; expired ones return ErrTokenExpired
// and are left in place until a fresh request overwrites them.
func (m *TokenManager) Redeem(ctx context.Context, token string) (*entity.User, error) {
	var u *entity.User
	err := m.Atomic.Within(ctx, func(ctx context.Context) error {
		found, err := m.Repo.FindByVerificationToken(ctx, token)
		if err != nil {
			return err
		}
		if found.VerifyEmailTokenExpiration == nil || m.Clock.Now().After(*found.VerifyEmailTokenExpiration) {
			return ErrTokenExpired
		}
		found.EmailVerified = true
		found.ClearVerificationToken()
		found.UpdatedAt = m.Clock.Now()
		if err := m.Repo.Update(ctx, found); err != nil {
			return err
		}
		u = found
		return nil
	})
	if err != nil {
		return nil, wrapStorage("redeem verification token", err)
	}
	return u, nil
}

// generateToken returns a URL-safe token with 32 bytes of entropy.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
