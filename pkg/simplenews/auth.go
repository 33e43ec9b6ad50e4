package simplenews

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role claim required on admin JWTs.
const RoleAdmin = "admin"

// StaticTokenAuthorizer accepts a single shared admin token. Only the
// SHA-256 digest of the token is kept in memory.
type StaticTokenAuthorizer struct {
	digest []byte
}

// NewStaticTokenAuthorizer creates an authorizer from the hex SHA-256 digest
// of the admin token.
func NewStaticTokenAuthorizer(digestHex string) (*StaticTokenAuthorizer, error) {
	digest, err := hex.DecodeString(strings.TrimSpace(digestHex))
	if err != nil {
		return nil, fmt.Errorf("admin token digest: %w", err)
	}
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("admin token digest must be %d bytes, got %d", sha256.Size, len(digest))
	}
	return &StaticTokenAuthorizer{digest: digest}, nil
}

// TokenDigest returns the hex SHA-256 digest of token, as expected by
// NewStaticTokenAuthorizer.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (a *StaticTokenAuthorizer) Authorize(ctx context.Context, token string) error {
	if token == "" {
		return &AuthError{Reason: "missing admin token"}
	}
	sum := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(sum[:], a.digest) != 1 {
		return &AuthError{Reason: "invalid admin token"}
	}
	return nil
}

// AdminClaims are the claims carried by admin JWTs.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthorizer accepts HS256 tokens signed with a shared secret whose role
// claim is admin.
type JWTAuthorizer struct {
	secret []byte
	issuer string
}

// NewJWTAuthorizer creates a JWT authorizer. An empty issuer accepts any issuer.
func NewJWTAuthorizer(secret []byte, issuer string) (*JWTAuthorizer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTAuthorizer{secret: secret, issuer: issuer}, nil
}

func (a *JWTAuthorizer) Authorize(ctx context.Context, token string) error {
	if token == "" {
		return &AuthError{Reason: "missing admin token"}
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return &AuthError{Reason: "invalid admin token", Err: err}
	}
	if claims.Role != RoleAdmin {
		return &AuthError{Reason: "admin role required"}
	}
	return nil
}

// IssueAdminToken signs an admin JWT for subject valid for ttl.
func IssueAdminToken(secret []byte, issuer, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is required")
	}
	now := time.Now()
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AnyAuthorizer accepts a token if any of its authorizers does.
type AnyAuthorizer []Authorizer

func (a AnyAuthorizer) Authorize(ctx context.Context, token string) error {
	if len(a) == 0 {
		return &AuthError{Reason: "no admin credential configured"}
	}
	var last error
	for _, auth := range a {
		if last = auth.Authorize(ctx, token); last == nil {
			return nil
		}
	}
	return last
}

// DenyAllAuthorizer rejects every mutation. It is the pipeline default.
type DenyAllAuthorizer struct{}

func (DenyAllAuthorizer) Authorize(ctx context.Context, token string) error {
	return &AuthError{Reason: "no admin credential configured"}
}
