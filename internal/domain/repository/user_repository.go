package repository

import (
	"context"

	"github.com/orientati/user-service/internal/domain/entity"
)

// UserRepository defines the interface for user-related database operations.
// Implementations translate storage-level failures (unique violations, missing
// rows) into the application error types before returning.
type UserRepository interface {
	List(ctx context.Context, limit, offset int) ([]*entity.User, error)
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*entity.User, error)
	Insert(ctx context.Context, u *entity.User) error
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id string) error
}

// Atomic runs fn inside a single storage transaction. Repository calls made
// with the ctx passed to fn join that transaction; fn returning an error
// rolls it back.
type Atomic interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}
