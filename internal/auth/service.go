package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) ServiceOption {
	return func(service *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			service.hashCost = cost
		}
	}
}

// Service authenticates users and mints their tokens.
type Service struct {
	users    UserStore
	tokens   *TokenIssuer
	nowFn    func() time.Time
	hashCost int
}

// Session is the result of a successful login.
type Session struct {
	User   User
	Tokens TokenPair
}

// NewService wires a Service.
func NewService(users UserStore, tokens *TokenIssuer, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("%w: user store is nil", ErrInvalidServiceConfig)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: token issuer is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{users: users, tokens: tokens, nowFn: now, hashCost: bcrypt.DefaultCost}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Login checks credentials. Unknown emails and wrong passwords are indistinguishable.
func (service *Service) Login(ctx context.Context, email string, password string) (Session, error) {
	user, err := service.users.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	tokens, err := service.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new pair, reloading the user so
// role changes and removals take effect.
func (service *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := service.tokens.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := service.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return TokenPair{}, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
	}
	if err != nil {
		return TokenPair{}, err
	}
	return service.tokens.Issue(user)
}

// Authenticate resolves an access token to its user.
func (service *Service) Authenticate(ctx context.Context, accessToken string) (User, error) {
	claims, err := service.tokens.Parse(accessToken, TokenAccess)
	if err != nil {
		return User{}, err
	}
	user, err := service.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Authorize returns ErrForbidden unless user holds one of allowed.
func Authorize(user User, allowed ...Role) error {
	if user.Role.In(allowed...) {
		return nil
	}
	return fmt.Errorf("%w: role %s", ErrForbidden, user.Role)
}

// CreateUser hashes the password and stores a new account.
func (service *Service) CreateUser(ctx context.Context, input NewUserInput) (User, error) {
	normalized, err := input.normalize()
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(normalized.Password), service.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := service.nowFn().UTC()
	user := User{
		Name:         normalized.Name,
		Email:        normalized.Email,
		Mobile:       normalized.Mobile,
		PasswordHash: string(hash),
		Role:         normalized.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := service.users.CreateUser(ctx, user); err != nil {
		return User{}, err
	}
	return service.users.FindUserByEmail(ctx, user.Email)
}

// SeedAdmin creates the admin account unless the email is already registered.
// The boolean reports whether an account was created.
func (service *Service) SeedAdmin(ctx context.Context, input NewUserInput) (User, bool, error) {
	input.Role = RoleAdmin
	existing, err := service.users.FindUserByEmail(ctx, input.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, err
	}
	created, err := service.CreateUser(ctx, input)
	if errors.Is(err, ErrDuplicateEmail) {
		existing, findErr := service.users.FindUserByEmail(ctx, input.Email)
		if findErr != nil {
			return User{}, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return created, true, nil
}
