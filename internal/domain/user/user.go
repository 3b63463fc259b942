package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// User is a registered customer.
type User struct {
	ID        int64
	Email     string
	FullName  string
	Phone     string
	CreatedAt time.Time
}

// Repository provides user lookups.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	Upsert(ctx context.Context, u *User) error
}
