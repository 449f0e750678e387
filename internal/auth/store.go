package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
	Hash      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the user repository. There is no self-service registration;
// users enter the store via seeding.
type Store interface {
	Create(ctx context.Context, u User, password string) error
	Verify(ctx context.Context, email, password string) (User, error)
	GetByID(ctx context.Context, id string) (User, bool, error)
	Ping(ctx context.Context) error
}
