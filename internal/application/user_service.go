package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/orientati/user-service/internal/domain/entity"
	repo "github.com/orientati/user-service/internal/domain/repository"
	"github.com/orientati/user-service/pkg/events"
)

const (
	verifyEmailSubject  = "Verify your email address"
	verifyEmailTemplate = "verify_email"
)

// EventPublisher sends change-notification events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType string, payload any) error
}

// PasswordHasher abstracts credential hashing so the service never compares
// hash strings directly.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) bool
}

// Service orchestrates the user lifecycle: validation, persistence, token
// management and change notifications. Persistence always commits before the
// matching event is published; a publish failure is logged and returned to
// the caller but never rolls back the committed row.
type Service struct {
	Repo      repo.UserRepository
	Atomic    repo.Atomic
	Tokens    *TokenManager
	Publisher EventPublisher
	Hasher    PasswordHasher
	Clock     Clock
	VerifyURL string
	Logger    *logrus.Logger
}

func NewService(r repo.UserRepository, atomic repo.Atomic, tokens *TokenManager, pub EventPublisher, hasher PasswordHasher, clock Clock, verifyURL string, logger *logrus.Logger) *Service {
	return &Service{
		Repo:      r,
		Atomic:    atomic,
		Tokens:    tokens,
		Publisher: pub,
		Hasher:    hasher,
		Clock:     clock,
		VerifyURL: verifyURL,
		Logger:    logger,
	}
}

// ListUsers returns a page of users. Paging values are passed through to the
// repository verbatim; the HTTP boundary applies defaults and rejects
// negatives.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	users, err := s.Repo.List(ctx, limit, offset)
	if err != nil {
		return nil, wrapStorage("list users", err)
	}
	return users, nil
}

// GetUser returns the user or nil when absent. Absence is not an error on
// the read path; the HTTP boundary turns nil into a 404.
func (s *Service) GetUser(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorage("get user", err)
	}
	return u, nil
}

type CreateUserInput struct {
	Email          string
	Name           string
	Surname        string
	HashedPassword string
}

// CreateUser validates input, persists the new unverified user, then runs
// two best-effort side effects: a CREATE event on the users topic and a
// verification email request. A side-effect failure is returned together
// with the created user; the row stays committed.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	existing, err := s.Repo.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, wrapStorage("create user", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Surname) == "" {
		return nil, ErrInvalidName
	}

	u := &entity.User{
		Email:          in.Email,
		Name:           in.Name,
		Surname:        in.Surname,
		HashedPassword: in.HashedPassword,
	}
	if err := s.Repo.Insert(ctx, u); err != nil {
		// A concurrent create with the same email loses the race on the
		// unique index and surfaces here.
		return nil, wrapStorage("create user", err)
	}

	var sideEffectErr error
	if err := s.publishUserEvent(ctx, events.TypeCreate, u); err != nil {
		sideEffectErr = err
	}
	if err := s.RequestEmailVerification(ctx, u.ID); err != nil {
		if sideEffectErr == nil {
			sideEffectErr = err
		}
	}
	return u, sideEffectErr
}

type UpdateUserInput struct {
	Email   *string
	Name    *string
	Surname *string
}

// UpdateUser applies the supplied fields only; nil fields are untouched.
// A changed email is re-checked for uniqueness inside the same transaction
// that rewrites the row.
func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*entity.User, error) {
	var updated *entity.User
	err := s.Atomic.Within(ctx, func(ctx context.Context) error {
		u, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if in.Email != nil && *in.Email != u.Email {
			other, err := s.Repo.FindByEmail(ctx, *in.Email)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if other != nil {
				return ErrEmailTaken
			}
			if !strings.Contains(*in.Email, "@") {
				return ErrInvalidEmail
			}
			u.Email = *in.Email
		}
		if in.Name != nil {
			u.Name = *in.Name
		}
		if in.Surname != nil {
			u.Surname = *in.Surname
		}
		u.UpdatedAt = s.Clock.Now()
		if err := s.Repo.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, wrapStorage("update user", err)
	}
	if err := s.publishUserEvent(ctx, events.TypeUpdate, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// ChangePassword replaces the stored credential when oldPassword verifies
// against it. A mismatch or a missing user returns false without an error;
// both are expected outcomes, not faults.
func (s *Service) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) (bool, error) {
	var changed *entity.User
	err := s.Atomic.Within(ctx, func(ctx context.Context) error {
		u, err := s.Repo.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !s.Hasher.Verify(oldPassword, u.HashedPassword) {
			return nil
		}
		hash, err := s.Hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash new password: %w", err)
		}
		u.HashedPassword = hash
		u.UpdatedAt = s.Clock.Now()
		if err := s.Repo.Update(ctx, u); err != nil {
			return err
		}
		changed = u
		return nil
	})
	if err != nil {
		return false, wrapStorage("change password", err)
	}
	if changed == nil {
		return false, nil
	}
	if err := s.publishUserEvent(ctx, events.TypeUpdate, changed); err != nil {
		return true, err
	}
	return true, nil
}

// DeleteUser hard-deletes the row. The DELETE event carries only the id so
// removed entities leak nothing else into the stream.
func (s *Service) DeleteUser(ctx context.Context, id string) (bool, error) {
	if err := s.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, wrapStorage("delete user", err)
	}
	if err := s.Publisher.Publish(ctx, events.TopicUsers, events.TypeDelete, events.UserDeletedPayload{ID: id}); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", id).Error("publish DELETE event failed")
		}
		return true, err
	}
	return true, nil
}

// RequestEmailVerification issues a fresh token for the user and publishes
// the email-delivery event. Already-verified users get no token and no
// email. Returns ErrNotFound for an unknown id.
func (s *Service) RequestEmailVerification(ctx context.Context, id string) error {
	u, token, err := s.Tokens.Issue(ctx, id)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	payload := events.EmailPayload{
		To:           u.Email,
		Subject:      verifyEmailSubject,
		TemplateName: verifyEmailTemplate,
		Context: events.EmailContext{
			Username: u.Name,
			Link:     s.VerifyURL + "?token=" + token,
		},
	}
	if err := s.Publisher.Publish(ctx, events.TopicEmail, events.TypeSend, payload); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("publish verification email event failed")
		}
		return err
	}
	return nil
}

// VerifyEmail redeems the token, marking its owner verified, and publishes
// the resulting UPDATE event.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	u, err := s.Tokens.Redeem(ctx, token)
	if err != nil {
		return err
	}
	if err := s.publishUserEvent(ctx, events.TypeUpdate, u); err != nil {
		return err
	}
	return nil
}

func (s *Service) publishUserEvent(ctx context.Context, eventType string, u *entity.User) error {
	err := s.Publisher.Publish(ctx, events.TopicUsers, eventType, userSnapshot(u))
	if err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"user_id":    u.ID,
			"event_type": eventType,
		}).Error("publish user event failed")
	}
	return err
}

// userSnapshot builds the outbound field set. Verification token fields
// never leave the service.
func userSnapshot(u *entity.User) events.UserPayload {
	return events.UserPayload{
		ID:             u.ID,
		Email:          u.Email,
		EmailVerified:  u.EmailVerified,
		Name:           u.Name,
		Surname:        u.Surname,
		HashedPassword: u.HashedPassword,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
