package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Ensure Adapter implements Authenticator
var _ driven.Authenticator = (*Adapter)(nil)

// jwtClaims carries the caller's role next to the registered claims
type jwtClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Adapter verifies HS256 bearer tokens and static API keys stored as bcrypt hashes
type Adapter struct {
	jwtSecret    []byte
	apiKeyHashes [][]byte
	apiKeyRole   domain.Role
	defaultRole  domain.Role
	bcryptCost   int
}

// Config holds authentication settings. Leaving both fields empty disables auth.
type Config struct {
	JWTSecret string

	// APIKeyHashes are bcrypt hashes of accepted API keys
	APIKeyHashes []string
}

// NewAdapter creates an auth adapter
func NewAdapter(cfg Config) *Adapter {
	a := &Adapter{
		jwtSecret:   []byte(cfg.JWTSecret),
		apiKeyRole:  domain.RoleAdmin,
		defaultRole: domain.RoleMember,
		bcryptCost:  bcrypt.DefaultCost,
	}
	for _, h := range cfg.APIKeyHashes {
		if h = strings.TrimSpace(h); h != "" {
			a.apiKeyHashes = append(a.apiKeyHashes, []byte(h))
		}
	}
	return a
}

// Enabled reports whether any credential scheme is configured
func (a *Adapter) Enabled() bool {
	return len(a.jwtSecret) > 0 || len(a.apiKeyHashes) > 0
}

// Authenticate accepts a JWT when it looks like one, otherwise an API key.
func (a *Adapter) Authenticate(ctx context.Context, credential string) (*domain.Principal, error) {
	if credential == "" {
		return nil, domain.ErrUnauthorized
	}

	if len(a.jwtSecret) > 0 && strings.Count(credential, ".") == 2 {
		return a.parseToken(credential)
	}

	for _, hash := range a.apiKeyHashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(credential)) == nil {
			return &domain.Principal{Subject: "api-key", Role: a.apiKeyRole, Method: "api_key"}, nil
		}
	}
	return nil, domain.ErrUnauthorized
}

func (a *Adapter) parseToken(tokenString string) (*domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}

	role := claims.Role
	if role != domain.RoleAdmin && role != domain.RoleMember {
		role = a.defaultRole
	}
	return &domain.Principal{Subject: claims.Subject, Role: role, Method: "jwt"}, nil
}

// GenerateToken signs a token for subject. Used by operators to mint credentials.
func (a *Adapter) GenerateToken(subject string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// HashAPIKey produces the bcrypt hash to place in API_KEY_HASHES
func (a *Adapter) HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), a.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
