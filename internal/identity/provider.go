// Package identity wraps the external authentication backend that owns user
// records and session tokens. The service never mints credentials itself.
package identity

import (
	"context"
	"errors"
	"time"

	"geosnap-service/internal/model"
)

var (
	ErrUserNotFound = errors.New("identity: user not found")
	ErrUserExists   = errors.New("identity: user already exists")
)

// User is the provider-side account record.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Provider is the capability set the verifier needs. SessionForVerifiedEmail
// hides the provider's one-time-token dance: a passwordless token is generated
// admin-side and redeemed immediately, never emailed to anyone.
type Provider interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// CreateUser provisions an account with the email already marked
	// verified; OTP delivery to the address was the verification.
	CreateUser(ctx context.Context, email string) (*User, error)
	SessionForVerifiedEmail(ctx context.Context, email string) (*model.Session, error)
}
