package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orientati/user-service/internal/application"
	"github.com/orientati/user-service/internal/domain/entity"
	"github.com/orientati/user-service/internal/domain/repository"
)

const uniqueViolationCode = "23505"

const userColumns = `id, email, email_verified, name, surname, hashed_password, verify_email_token, verify_email_token_expiration, created_at, updated_at`

// UserRepository persists users in PostgreSQL. It accepts any Queryer so
// production code hands it a pgxpool.Pool while tests hand it pgxmock.
// Single-row lookups inside a transaction take a row lock, which serializes
// concurrent read-then-write cycles on the same user.
type UserRepository struct {
	db Queryer
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db Queryer) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	q := QueryerFromContext(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u := &entity.User{}
		if err := scanUser(rows, u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, "email = $1", email)
}

func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string) (*entity.User, error) {
	return r.findOne(ctx, "verify_email_token = $1", token)
}

func (r *UserRepository) Insert(ctx context.Context, u *entity.User) error {
	q := QueryerFromContext(ctx, r.db)
	row := q.QueryRow(ctx, `
		INSERT INTO users (email, name, surname, hashed_password)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email_verified, created_at, updated_at
	`, u.Email, u.Name, u.Surname, u.HashedPassword)

	if err := row.Scan(&u.ID, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return translatePgError(err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	q := QueryerFromContext(ctx, r.db)
	res, err := q.Exec(ctx, `
		UPDATE users
		SET email = $1, email_verified = $2, name = $3, surname = $4,
			hashed_password = $5, verify_email_token = $6,
			verify_email_token_expiration = $7, updated_at = $8
		WHERE id = $9
	`, u.Email, u.EmailVerified, u.Name, u.Surname, u.HashedPassword,
		u.VerifyEmailToken, u.VerifyEmailTokenExpiration, u.UpdatedAt, u.ID)
	if err != nil {
		return translatePgError(err)
	}
	if res.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	q := QueryerFromContext(ctx, r.db)
	res, err := q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translatePgError(err)
	}
	if res.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (*entity.User, error) {
	q := QueryerFromContext(ctx, r.db)
	sql := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	if inTransaction(ctx) {
		sql += " FOR UPDATE"
	}

	u := &entity.User{}
	if err := scanUser(q.QueryRow(ctx, sql, arg), u); err != nil {
		return nil, translatePgError(err)
	}
	return u, nil
}

func scanUser(row pgx.Row, u *entity.User) error {
	return row.Scan(
		&u.ID, &u.Email, &u.EmailVerified, &u.Name, &u.Surname,
		&u.HashedPassword, &u.VerifyEmailToken, &u.VerifyEmailTokenExpiration,
		&u.CreatedAt, &u.UpdatedAt,
	)
}

func translatePgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return application.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return application.ErrEmailTaken
	}
	return err
}
