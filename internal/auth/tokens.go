package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	minPasswordLength = 8
	minSecretLength   = 16

	defaultAccessTTL  = 72 * time.Hour
	defaultRefreshTTL = 168 * time.Hour
	defaultIssuer     = "turfd"
)

// TokenType separates access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Role Role      `json:"role"`
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is an access token with the refresh token that renews it.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenConfig configures a TokenIssuer. Zero durations use the defaults.
type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer signs and validates HS256 tokens.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFn      func() time.Time
}

// NewTokenIssuer validates config and builds a TokenIssuer.
func NewTokenIssuer(config TokenConfig, now func() time.Time) (*TokenIssuer, error) {
	if len(config.Secret) < minSecretLength {
		return nil, fmt.Errorf("%w: jwt secret must have at least %d characters", ErrInvalidServiceConfig, minSecretLength)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	if config.AccessTTL < 0 || config.RefreshTTL < 0 {
		return nil, fmt.Errorf("%w: token lifetimes must not be negative", ErrInvalidServiceConfig)
	}
	issuer := &TokenIssuer{
		secret:     []byte(config.Secret),
		issuer:     strings.TrimSpace(config.Issuer),
		accessTTL:  config.AccessTTL,
		refreshTTL: config.RefreshTTL,
		nowFn:      now,
	}
	if issuer.issuer == "" {
		issuer.issuer = defaultIssuer
	}
	if issuer.accessTTL == 0 {
		issuer.accessTTL = defaultAccessTTL
	}
	if issuer.refreshTTL == 0 {
		issuer.refreshTTL = defaultRefreshTTL
	}
	return issuer, nil
}

// Issue signs a fresh token pair for user.
func (issuer *TokenIssuer) Issue(user User) (TokenPair, error) {
	issuedAt := issuer.nowFn()
	access, accessExpiry, err := issuer.sign(user, TokenAccess, issuedAt, issuer.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExpiry, err := issuer.sign(user, TokenRefresh, issuedAt, issuer.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (issuer *TokenIssuer) sign(user User, tokenType TokenType, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := issuedAt.Add(ttl)
	claims := Claims{
		Role: user.Role,
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, expiresAt, nil
}

// Parse validates raw and requires it to be of the expected type.
func (issuer *TokenIssuer) Parse(raw string, expected TokenType) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(token *jwt.Token) (interface{}, error) {
		return issuer.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer.issuer),
		jwt.WithTimeFunc(issuer.nowFn),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	if claims.Type != expected {
		return Claims{}, fmt.Errorf("%w: expected %s, got %q", ErrInvalidTokenType, expected, claims.Type)
	}
	return claims, nil
}
