package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "prokill"

// Claims represents JWT claims
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Service mints and verifies HS256 bearer tokens from a shared secret.
type Service struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService returns a Service for secret. A zero ttl means one hour.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{secret: []byte(secret), tokenTTL: ttl, now: time.Now}, nil
}

// Issue signs a token for subject carrying roles.
func (s *Service) Issue(subject string, roles []string) (*Token, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		Type:      "Bearer",
		Value:     tokenString,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify validates tokenString and returns its subject and roles.
func (s *Service) Verify(tokenString string) (*Result, error) {
	if tokenString == "" {
		return &Result{}, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return &Result{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return &Result{}, ErrInvalidToken
	}

	return &Result{
		Success: true,
		Subject: claims.Subject,
		Roles:   claims.Roles,
	}, nil
}
