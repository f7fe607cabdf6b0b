package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
)

type UserStore interface {
	// Create fails with ErrEmailTaken when the email exists.
	Create(ctx context.Context, u *User) error
	// FindByEmail fails with ErrNotFound when no user has the email.
	FindByEmail(ctx context.Context, email string) (*User, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	// FindByUser returns at most limit sessions, newest login first.
	FindByUser(ctx context.Context, email string, limit int) ([]*Session, error)
	// End marks the user's session inactive and returns how many matched.
	End(ctx context.Context, email string, id uuid.UUID, at time.Time) (int64, error)
}
