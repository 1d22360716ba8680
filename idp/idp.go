package idp

import (
	"context"
	"errors"
)

// ProviderType selects the identity provider implementation
type ProviderType string

const (
	ProviderAsgardeo ProviderType = "asgardeo"
	ProviderGoTrue   ProviderType = "gotrue"
)

var (
	// ErrUserNotFound is returned when the provider has no such user
	ErrUserNotFound = errors.New("user not found in identity provider")
	// ErrInvalidToken is returned when the provider rejects a bearer token
	ErrInvalidToken = errors.New("identity provider rejected token")
)

type IdentityProviderAPI interface {
	UserManager
	TokenVerifier
}

type UserManager interface {
	GetUser(ctx context.Context, userId string) (*UserInfo, error)
	// DeleteUser hard-deletes the user; providers with soft delete must not use it here.
	DeleteUser(ctx context.Context, userId string) error
}

// TokenVerifier resolves a caller's bearer token to the user it was issued for
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*UserInfo, error)
}

type UserInfo struct {
	Id          string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
}
