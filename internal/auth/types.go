// Package auth authenticates staff users and issues bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Domain-level error values returned by the auth service.
var (
	ErrInvalidServiceConfig = errors.New("invalid auth service config")
	ErrInvalidUser          = errors.New("invalid user")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidTokenType     = errors.New("invalid token type")
	ErrForbidden            = errors.New("forbidden")
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("email already registered")
)

// Role grants access to route groups.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// ParseRole converts a raw string into a Role (case-insensitive).
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleStaff:
		return RoleStaff, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// String returns the raw value.
func (role Role) String() string {
	return string(role)
}

// In reports whether role is one of allowed.
func (role Role) In(allowed ...Role) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}

// User is a staff account. PasswordHash never leaves the service boundary.
type User struct {
	ID           string
	Name         string
	Email        string
	Mobile       string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUserInput carries the caller-supplied fields of a new account.
type NewUserInput struct {
	Name     string
	Email    string
	Mobile   string
	Password string
	Role     Role
}

func (input NewUserInput) normalize() (NewUserInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Mobile = strings.TrimSpace(input.Mobile)
	if input.Name == "" {
		return NewUserInput{}, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(input.Email); err != nil || strings.Contains(input.Email, "<") {
		return NewUserInput{}, fmt.Errorf("%w: email %q is not an address", ErrInvalidUser, input.Email)
	}
	if len(input.Password) < minPasswordLength {
		return NewUserInput{}, fmt.Errorf("%w: password must have at least %d characters", ErrInvalidUser, minPasswordLength)
	}
	if _, err := ParseRole(input.Role.String()); err != nil {
		return NewUserInput{}, err
	}
	return input, nil
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user User) error
	FindUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}
