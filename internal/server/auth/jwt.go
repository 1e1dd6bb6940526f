// Package auth mints and verifies the HS256 access tokens that carry a
// caller's identity.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller as asserted by an access token.
type Identity struct {
	UserID int64
	Email  string
	Role   string
}

// Claims are the registered claims plus the identity fields.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func GenerateToken(id Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns the identity it carries.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID <= 0 {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Issuer mints access tokens for an identity.
type Issuer interface {
	Issue(id Identity) (string, error)
}

// JWT implements Issuer and Verifier with a shared HS256 secret.
type JWT struct {
	secret   []byte
	validity time.Duration
}

func NewJWT(secret string, validity time.Duration) *JWT {
	return &JWT{secret: []byte(secret), validity: validity}
}

func (j *JWT) Issue(id Identity) (string, error) {
	return GenerateToken(id, j.secret, j.validity)
}

func (j *JWT) Verify(token string) (Identity, error) {
	return ParseToken(token, j.secret)
}

type identityKey struct{}

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
