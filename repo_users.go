package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the bun backed user store
type Users interface {
	UserFinder

	Register(ctx context.Context, user *User, password string) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User, password string) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db     *bun.DB
	hasher PasswordAuthenticator
}

var _ Users = (*users)(nil)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithUsersPasswordHasher overrides the hasher used by Register
func WithUsersPasswordHasher(hasher PasswordAuthenticator) UsersOption {
	return func(u *users) {
		if hasher != nil {
			u.hasher = hasher
		}
	}
}

// NewUsersRepository returns a Users store on top of db
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		hasher:     BcryptHasher{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

// FindUserByEmail matches email exactly, no case folding.
func (a *users) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return a.findOneTx(ctx, a.db, "email", email)
}

func (a *users) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, notFoundOr(err, "id", id)
	}
	return user, nil
}

func (a *users) findOneTx(ctx context.Context, tx bun.IDB, column string, value any) (*User, error) {
	user, err := a.Repository.GetTx(ctx, tx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(column), value)
	})
	if err != nil {
		return nil, notFoundOr(err, column, value)
	}
	return user, nil
}

func (a *users) Register(ctx context.Context, user *User, password string) (*User, error) {
	return a.RegisterTx(ctx, a.db, user, password)
}

// RegisterTx hashes password and inserts user. The plaintext is never stored.
// Passwords are limited to MaxPasswordLength bytes.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User, password string) (*User, error) {
	if user == nil {
		return nil, errors.New("user record is required")
	}

	user.Email = strings.TrimSpace(user.Email)
	if user.Email == "" {
		return nil, errors.New("user email is required")
	}

	if len(password) > MaxPasswordLength {
		return nil, ErrPasswordTooLong
	}

	hash, err := a.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	prepareUserDefaults(user)
	user.PasswordHash = hash

	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) Delete(ctx context.Context, id uuid.UUID) error {
	return a.DeleteTx(ctx, a.db, id)
}

// DeleteTx soft deletes the user, lookups stop returning it right away and
// its email can be registered again.
func (a *users) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	user, err := a.findOneTx(ctx, tx, "id", id)
	if err != nil {
		return err
	}
	return a.Repository.DeleteTx(ctx, tx, user)
}

func notFoundOr(err error, column string, value any) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s=%v: %w", column, value, ErrIdentityNotFound)
	}
	return err
}
