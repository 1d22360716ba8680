package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims represents the JWT claims issued by the auth provider
type UserClaims struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// AuthenticatedUser is the identity proven by a bearer token.
// It carries no roles; roles are loaded from the store during actor resolution.
type AuthenticatedUser struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAuthenticatedUser creates a new authenticated user from JWT claims
func NewAuthenticatedUser(claims *UserClaims) *AuthenticatedUser {
	user := &AuthenticatedUser{
		UserID: claims.Subject,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user
}

// Actor is the resolved caller of an administrative action.
// It is immutable once constructed and passed by value.
type Actor struct {
	userID string
	email  string
	roles  []Role
}

// NewActor builds an Actor from an identity and its role assignments
func NewActor(userID, email string, roles []Role) Actor {
	own := make([]Role, len(roles))
	copy(own, roles)
	return Actor{userID: userID, email: email, roles: own}
}

// UserID returns the caller's user ID
func (a Actor) UserID() string { return a.userID }

// Email returns the caller's email, if known
func (a Actor) Email() string { return a.email }

// Roles returns a copy of the caller's roles
func (a Actor) Roles() []Role {
	out := make([]Role, len(a.roles))
	copy(out, a.roles)
	return out
}

// HasRole checks if the actor has a specific role
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the actor has any of the specified roles
func (a Actor) HasAnyRole(roles ...Role) bool {
	for _, required := range roles {
		if a.HasRole(required) {
			return true
		}
	}
	return false
}

// IsAdmin checks if the actor has the admin role
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// IsElevated reports whether the actor holds any non-member role
func (a Actor) IsElevated() bool {
	for _, r := range a.roles {
		if r.IsElevated() {
			return true
		}
	}
	return false
}

// PrimaryRole returns the most senior role held, or "" when none
func (a Actor) PrimaryRole() Role {
	var primary Role
	best := len(rolePrecedence)
	for _, r := range a.roles {
		if rank := r.rank(); rank < best {
			best = rank
			primary = r
		}
	}
	return primary
}
